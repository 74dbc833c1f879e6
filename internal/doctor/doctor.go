// Package doctor validates a parsed config model before it is exported:
// it reports parser warnings and checks that each connection's hostname
// actually resolves.
package doctor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

// DefaultResolvConf is where the system resolver configuration lives.
const DefaultResolvConf = "/etc/resolv.conf"

// Finding is one problem or note about a connection.
type Finding struct {
	Key     string
	Message string
}

func (f Finding) String() string {
	if f.Key == "" {
		return f.Message
	}
	return f.Key + ": " + f.Message
}

// Result collects the findings of one doctor pass.
type Result struct {
	Checked  int
	Findings []Finding
}

// OK reports whether the pass found nothing to complain about.
func (r *Result) OK() bool { return len(r.Findings) == 0 }

// Doctor runs validation passes over a ConfigModel.
type Doctor struct {
	server    string
	dnsClient *dns.Client
	logger    *slog.Logger
}

// Option is a functional option for configuring the Doctor.
type Option func(*Doctor)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Doctor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithServer overrides the DNS server (host:port) used for lookups.
func WithServer(server string) Option {
	return func(d *Doctor) {
		d.server = server
	}
}

// New creates a Doctor. Unless overridden, the DNS server is taken from
// the system resolver configuration.
func New(opts ...Option) (*Doctor, error) {
	d := &Doctor{
		dnsClient: &dns.Client{Timeout: 5 * time.Second},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.server == "" {
		conf, err := dns.ClientConfigFromFile(DefaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("reading resolver config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in %s", DefaultResolvConf)
		}
		d.server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}

	return d, nil
}

// Check inspects every connection in the model: parser warnings are
// surfaced as findings, and each non-literal hostname is resolved over DNS.
func (d *Doctor) Check(ctx context.Context, m *model.ConfigModel) *Result {
	result := &Result{}

	for _, warning := range m.Warnings {
		result.Findings = append(result.Findings, Finding{Message: warning})
	}

	for _, conn := range m.All() {
		result.Checked++

		if net.ParseIP(conn.Hostname) != nil {
			continue
		}
		if strings.ContainsAny(conn.Hostname, "*?%") {
			result.Findings = append(result.Findings, Finding{
				Key:     conn.Key(),
				Message: fmt.Sprintf("hostname %q contains pattern characters", conn.Hostname),
			})
			continue
		}

		if err := d.resolve(ctx, conn.Hostname); err != nil {
			d.logger.Debug("hostname did not resolve",
				slog.String("key", conn.Key()),
				slog.String("hostname", conn.Hostname),
				slog.String("error", err.Error()),
			)
			result.Findings = append(result.Findings, Finding{
				Key:     conn.Key(),
				Message: fmt.Sprintf("hostname %q does not resolve: %v", conn.Hostname, err),
			})
		}
	}

	d.logger.Info("doctor pass complete",
		slog.Int("checked", result.Checked),
		slog.Int("findings", len(result.Findings)),
	)
	return result
}

// resolve queries A then AAAA for name and succeeds if either returns at
// least one answer.
func (d *Doctor) resolve(ctx context.Context, name string) error {
	fqdn := dns.Fqdn(name)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		resp, _, err := d.exchange(ctx, msg)
		if err != nil {
			return fmt.Errorf("querying %s: %w", dns.TypeToString[qtype], err)
		}
		if resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
			return nil
		}
	}
	return fmt.Errorf("no A or AAAA records")
}

// exchange performs one DNS exchange honoring context cancellation.
func (d *Doctor) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	type result struct {
		resp *dns.Msg
		rtt  time.Duration
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		resp, rtt, err := d.dnsClient.Exchange(msg, d.server)
		ch <- result{resp, rtt, err}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case r := <-ch:
		return r.resp, r.rtt, r.err
	}
}
