package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type event struct {
	ID string `json:"id"`
}

func (event) EventType() string { return "project.created" }

func TestPublisherPublishesJSON(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close() //nolint:errcheck

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: "projects/project-id/topics/projects"})
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	id, err := pub.Publish(ctx, "projects", event{ID: "p-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "p-1", got.ID)
	assert.Equal(t, "project.created", msgs[0].Attributes["event_type"])
}

func TestPublisherRequiresClientAndTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "t", event{})
	require.Error(t, err)

	p := &Publisher{client: &pubsub.Client{}, publishers: map[string]*pubsub.Publisher{}}
	_, err = p.Publish(context.Background(), "", event{})
	require.Error(t, err)

	_, err = p.Publish(context.Background(), "t", func() {})
	require.Error(t, err, "functions cannot be marshaled")
}
