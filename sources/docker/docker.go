// Package docker discovers connection records from running Docker
// containers. A container opts in with the sshweaver.host label; the
// discovered connections are merged into the local model before an export.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

// Container labels recognized by the discovery source.
const (
	// LabelHost opts a container in and names the hostname to connect to.
	LabelHost = "sshweaver.host"
	// LabelPort overrides the SSH port (default 22).
	LabelPort = "sshweaver.port"
	// LabelUser sets the SSH username.
	LabelUser = "sshweaver.user"
	// LabelGroup places the connection under a group path (slash-separated).
	LabelGroup = "sshweaver.group"
	// LabelName overrides the connection label (default: container name).
	LabelName = "sshweaver.name"
)

// containerLister is the part of the Docker API the source uses.
type containerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// Source discovers connections from Docker container labels.
type Source struct {
	docker containerLister
	logger *slog.Logger
}

// Option is a functional option for configuring the Source.
type Option func(*Source)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClient sets a custom Docker API client. Used in tests.
func WithClient(c containerLister) Option {
	return func(s *Source) {
		s.docker = c
	}
}

// New creates a Source connected to the Docker daemon at host. An empty
// host uses the environment defaults (DOCKER_HOST etc.).
func New(host string, opts ...Option) (*Source, error) {
	s := &Source{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if s.docker == nil {
		clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
		if host != "" {
			clientOpts = append(clientOpts, client.WithHost(host))
		}
		c, err := client.NewClientWithOpts(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating docker client: %w", err)
		}
		s.docker = c
	}

	return s, nil
}

// Discover lists running containers carrying the sshweaver.host label and
// converts each into a connection record.
func (s *Source) Discover(ctx context.Context) ([]*model.Connection, error) {
	f := filters.NewArgs()
	f.Add("label", LabelHost)

	containers, err := s.docker.ContainerList(ctx, container.ListOptions{Filters: f})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	var conns []*model.Connection
	for _, c := range containers {
		conn, err := s.fromContainer(c)
		if err != nil {
			s.logger.Warn("skipping container with invalid labels",
				slog.String("container", containerName(c)),
				slog.String("error", err.Error()),
			)
			continue
		}
		conns = append(conns, conn)
	}

	s.logger.Debug("docker discovery complete",
		slog.Int("containers", len(containers)),
		slog.Int("connections", len(conns)),
	)
	return conns, nil
}

// fromContainer builds a connection from one container's labels.
func (s *Source) fromContainer(c container.Summary) (*model.Connection, error) {
	host := c.Labels[LabelHost]
	if host == "" {
		return nil, fmt.Errorf("label %s is empty", LabelHost)
	}

	label := c.Labels[LabelName]
	if label == "" {
		label = containerName(c)
	}
	if label == "" {
		return nil, fmt.Errorf("container has no usable name")
	}

	port := model.DefaultPort
	if v := c.Labels[LabelPort]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("label %s: %w", LabelPort, err)
		}
		port = p
	}

	var groupPath []string
	if v := c.Labels[LabelGroup]; v != "" {
		for _, part := range strings.Split(v, "/") {
			if part = strings.TrimSpace(part); part != "" {
				groupPath = append(groupPath, part)
			}
		}
	}

	conn := &model.Connection{
		Label:     label,
		Hostname:  host,
		Port:      port,
		User:      c.Labels[LabelUser],
		GroupPath: groupPath,
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return conn, nil
}

func containerName(c container.Summary) string {
	if len(c.Names) == 0 {
		return ""
	}
	return strings.TrimPrefix(c.Names[0], "/")
}
