package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

func fakeServer(t *testing.T) (*pstest.Server, []option.ClientOption) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, []option.ClientOption{option.WithGRPCConn(conn)}
}

func createTopic(t *testing.T, opts []option.ClientOption, id string) {
	t.Helper()
	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "proj", opts...)
	require.NoError(t, err)
	_, err = client.CreateTopic(ctx, id)
	require.NoError(t, err)
}

func TestPublishSendsRecordEvent(t *testing.T) {
	t.Parallel()

	srv, opts := fakeServer(t)
	createTopic(t, opts, "bid-records")

	pub, err := Open(context.Background(), "proj", "bid-records", nil, opts...)
	require.NoError(t, err)

	rec := bid.Record{
		Name:         "João",
		Photo:        "http://x/1.png",
		Timestamp:    "01/01/2024 10:00",
		Nickname:     "Joãozinho",
		ContractType: "EMPRESTIMO",
	}
	require.NoError(t, pub.Publish(context.Background(), rec))
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "EMPRESTIMO", msgs[0].Attributes["contract_type"])

	var ev Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &ev))
	require.Equal(t, rec, ev.Record)
	require.Equal(t, rec.Caption(), ev.Caption)
}

func TestOpenMissingTopic(t *testing.T) {
	t.Parallel()

	_, opts := fakeServer(t)
	_, err := Open(context.Background(), "proj", "absent", nil, opts...)
	require.ErrorContains(t, err, "does not exist")
}

func TestOpenRequiresNames(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", "topic", nil)
	require.Error(t, err)
}
