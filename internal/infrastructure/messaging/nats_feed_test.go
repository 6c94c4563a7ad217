package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeed(t *testing.T) *NATSFeed {
	t.Helper()
	return NewNATSFeed(&config.NATSConfig{MaxPendingMessages: 8}, logger.NewNop())
}

func record(sig, from, to, contract string) entity.RawRecord {
	return entity.RawRecord{
		Signature:   sig,
		From:        from,
		To:          to,
		Value:       "100",
		Instruction: "transfer",
		Contract:    contract,
		Timestamp:   1767225600,
		Network:     "solana",
	}
}

func deliver(t *testing.T, feed *NATSFeed, r entity.RawRecord) {
	t.Helper()
	payload, err := json.Marshal(r)
	require.NoError(t, err)
	feed.handleMessage(&nats.Msg{Data: payload})
}

func TestNATSFeed_FansOutToTouchedWallets(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	sender := entity.Address{1}
	receiver := entity.Address{2}
	bystander := entity.Address{3}

	senderCh, err := feed.Subscribe(ctx, sender)
	require.NoError(t, err)
	receiverCh, err := feed.Subscribe(ctx, receiver)
	require.NoError(t, err)
	bystanderCh, err := feed.Subscribe(ctx, bystander)
	require.NoError(t, err)

	deliver(t, feed, record("s1", sender.String(), receiver.String(), ""))

	assert.Len(t, senderCh, 1)
	assert.Len(t, receiverCh, 1)
	assert.Empty(t, bystanderCh)

	got := <-senderCh
	assert.Equal(t, "s1", got.Signature)
}

func TestNATSFeed_MatchesContractSubscribers(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	token := entity.Address{9}
	tokenCh, err := feed.Subscribe(ctx, token)
	require.NoError(t, err)

	deliver(t, feed, record("s1", entity.Address{1}.String(), entity.Address{2}.String(), token.String()))

	require.Len(t, tokenCh, 1)
}

func TestNATSFeed_DropsWhenSubscriberFull(t *testing.T) {
	feed := NewNATSFeed(&config.NATSConfig{MaxPendingMessages: 1}, logger.NewNop())
	ctx := context.Background()

	wallet := entity.Address{1}
	ch, err := feed.Subscribe(ctx, wallet)
	require.NoError(t, err)

	deliver(t, feed, record("s1", wallet.String(), entity.Address{2}.String(), ""))
	deliver(t, feed, record("s2", wallet.String(), entity.Address{2}.String(), ""))

	// The second record is dropped rather than blocking the feed.
	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, "s1", got.Signature)
}

func TestNATSFeed_MalformedPayloadIsIgnored(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	wallet := entity.Address{1}
	ch, err := feed.Subscribe(ctx, wallet)
	require.NoError(t, err)

	feed.handleMessage(&nats.Msg{Data: []byte("not json")})
	assert.Empty(t, ch)
}

func TestNATSFeed_UnsubscribeClosesChannel(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	wallet := entity.Address{1}
	ch, err := feed.Subscribe(ctx, wallet)
	require.NoError(t, err)

	require.NoError(t, feed.Unsubscribe(wallet, ch))

	_, open := <-ch
	assert.False(t, open)

	// Records for an unsubscribed wallet go nowhere.
	deliver(t, feed, record("s1", wallet.String(), entity.Address{2}.String(), ""))

	// A second unsubscribe of the same channel is a no-op.
	require.NoError(t, feed.Unsubscribe(wallet, ch))
}

func TestNATSFeed_UnsubscribeLeavesSiblingSubscriptionOpen(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	wallet := entity.Address{1}
	first, err := feed.Subscribe(ctx, wallet)
	require.NoError(t, err)
	second, err := feed.Subscribe(ctx, wallet)
	require.NoError(t, err)

	require.NoError(t, feed.Unsubscribe(wallet, first))

	_, open := <-first
	require.False(t, open)

	// The sibling still receives records after the first unsubscribes.
	deliver(t, feed, record("s1", wallet.String(), entity.Address{2}.String(), ""))
	select {
	case got, open := <-second:
		require.True(t, open, "sibling channel must remain open")
		assert.Equal(t, "s1", got.Signature)
	default:
		t.Fatal("sibling subscription received nothing")
	}
}
