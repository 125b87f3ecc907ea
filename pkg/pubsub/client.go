package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotConnected      = errors.New("pubsub client not initialized")
)

// Message is one domain event on its way to the storefront topic.
type Message struct {
	Data        []byte
	Attributes  map[string]string
	OrderingKey string
}

// Client publishes order, delivery and refund events to the domain topic.
type Client struct {
	client    *pubsub.Client
	domain    *pubsub.Publisher
	projectID string
	topic     string
	ordering  bool
}

// NewClient connects to Pub/Sub and fails fast when the domain topic has not been provisioned.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	c := &Client{client: ps, projectID: projectID, ordering: cfg.Ordering}
	if c.topic = c.topicResourceName(cfg.DomainTopic); c.topic == "" {
		_ = ps.Close()
		return nil, errors.New("pubsub domain topic is required")
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	c.domain = ps.Publisher(c.topic)
	c.domain.EnableMessageOrdering = cfg.Ordering

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"topic": c.topic, "ordering": cfg.Ordering}), "pubsub.connected")
	}
	return c, nil
}

// Publish blocks until the server acknowledges msg and returns its server id. A failed ordered
// publish pauses that key inside the library, so the key is resumed before returning the error.
func (c *Client) Publish(ctx context.Context, msg Message) (string, error) {
	if c == nil || c.domain == nil {
		return "", errNotConnected
	}
	out := &pubsub.Message{Data: msg.Data, Attributes: msg.Attributes}
	if c.ordering {
		out.OrderingKey = msg.OrderingKey
	}
	id, err := c.domain.Publish(ctx, out).Get(ctx)
	if err != nil {
		if out.OrderingKey != "" {
			c.domain.ResumePublish(out.OrderingKey)
		}
		return "", fmt.Errorf("publish to %s: %w", c.topic, err)
	}
	return id, nil
}

// Ping checks the domain topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotConnected
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %s does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("get topic %s: %w", c.topic, err)
	}
	return nil
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.domain != nil {
		c.domain.Stop()
	}
	return c.client.Close()
}

// topicResourceName accepts a bare topic id or a full projects/<p>/topics/<t> name.
func (c *Client) topicResourceName(name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/"):
		return n
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/topics/" + n
}
