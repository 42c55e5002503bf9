package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/teams-titles-scraper/internal/publisher"
)

func fakeServer(t *testing.T) (*pstest.Server, option.ClientOption) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, option.WithGRPCConn(conn)
}

func TestDialAndPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, conn := fakeServer(t)
	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: "projects/proj/topics/runs"})
	require.NoError(t, err)

	pub, err := Dial(ctx, "proj", "runs", nil, conn)
	require.NoError(t, err)

	id, err := pub.Publish(ctx, "runs", publisher.RunCompleted{RunID: "r1", Mode: "sitemap", Total: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got publisher.RunCompleted
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Total)

	require.NoError(t, pub.Close())
}

func TestDialMissingTopic(t *testing.T) {
	t.Parallel()

	_, conn := fakeServer(t)
	_, err := Dial(context.Background(), "proj", "absent", nil, conn)
	require.ErrorContains(t, err, "absent")
}

func TestPublishWithoutPublisher(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "runs", "x")
	require.ErrorContains(t, err, "not configured")
	assert.NoError(t, New(nil).Close())
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
