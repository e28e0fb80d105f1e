package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cacheadapter "github.com/evmac/messaging-service/internal/infrastructure/cache/adapter"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/webhook"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
	"github.com/evmac/messaging-service/internal/pkg/messaging/provider"
)

// memoryRepository is an in-memory MessagingRepository used in place of the
// Postgres adapter. It mirrors the adapter's contract: lookups return
// (nil, nil) on absence, participant sets are unique (a losing concurrent
// create receives the winner's row), and inbound provider message ids dedup
// at save time. Safe for concurrent use so tests can race resolves.
type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]*messaging.Conversation // participantKey -> conversation
	participants  map[string][]string                // conversationID -> addresses
	messages      []messaging.Message
	nextID        int

	failSave    bool
	createCalls int

	// Interleaving knobs: hide the pre-insert lookups so callers hit the
	// same paths a lost creation or redelivery race produces against
	// Postgres (find sees nothing, insert yields the winner's row).
	hideConversationLookup bool
	hideMessageLookup      bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]*messaging.Conversation),
		participants:  make(map[string][]string),
	}
}

var _ repository.MessagingRepository = (*memoryRepository)(nil)

func (r *memoryRepository) WithinTx(ctx context.Context, fn func(repository.MessagingRepository) error) error {
	return fn(r)
}

func (r *memoryRepository) FindConversationByParticipants(ctx context.Context, addresses []string) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideConversationLookup {
		return nil, nil
	}
	if conv, ok := r.conversations[messaging.ParticipantKey(addresses)]; ok {
		return conv, nil
	}
	return nil, nil
}

func (r *memoryRepository) CreateConversationWithParticipants(ctx context.Context, addresses []string) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	key := messaging.ParticipantKey(addresses)
	if conv, ok := r.conversations[key]; ok {
		return conv, nil
	}
	r.nextID++
	now := time.Now().UTC()
	conv := &messaging.Conversation{ID: fmt.Sprintf("conv-%d", r.nextID), CreatedAt: now, UpdatedAt: now}
	r.conversations[key] = conv
	sorted := append([]string(nil), addresses...)
	sort.Strings(sorted)
	r.participants[conv.ID] = sorted
	return conv, nil
}

func (r *memoryRepository) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getConversationLocked(id), nil
}

func (r *memoryRepository) getConversationLocked(id string) *messaging.Conversation {
	for _, conv := range r.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

func (r *memoryRepository) GetConversationSummary(ctx context.Context, id string) (*repository.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv := r.getConversationLocked(id)
	if conv == nil {
		return nil, nil
	}
	return r.summarize(*conv), nil
}

func (r *memoryRepository) ListConversations(ctx context.Context, limit, offset int, participantAddress string) ([]repository.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.ConversationSummary
	for _, conv := range r.conversations {
		if participantAddress != "" && !contains(r.participants[conv.ID], participantAddress) {
			continue
		}
		out = append(out, *r.summarize(*conv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Conversation.CreatedAt.After(out[j].Conversation.CreatedAt)
	})
	return out, nil
}

func (r *memoryRepository) summarize(conv messaging.Conversation) *repository.ConversationSummary {
	s := &repository.ConversationSummary{
		Conversation: conv,
		Participants: r.participants[conv.ID],
	}
	for _, m := range r.messages {
		if m.ConversationID != conv.ID {
			continue
		}
		s.MessageCount++
		ts := m.MessageTimestamp
		if s.LastMessageTimestamp == nil || ts.After(*s.LastMessageTimestamp) {
			s.LastMessageTimestamp = &ts
		}
	}
	return s
}

func (r *memoryRepository) FindMessageByProviderID(ctx context.Context, channel messaging.Channel, providerMessageID string) (*messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideMessageLookup {
		return nil, nil
	}
	return r.findMessageLocked(channel, providerMessageID), nil
}

func (r *memoryRepository) findMessageLocked(channel messaging.Channel, providerMessageID string) *messaging.Message {
	for i := range r.messages {
		m := &r.messages[i]
		if m.Channel == channel && m.ProviderMessageID != nil && *m.ProviderMessageID == providerMessageID {
			return m
		}
	}
	return nil
}

func (r *memoryRepository) SaveMessage(ctx context.Context, m messaging.Message) (*messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return nil, errors.New("storage offline")
	}
	// The unique-index equivalent: a conflicting inbound insert yields the
	// stored row, regardless of what the caller's earlier lookup saw.
	if m.Direction == messaging.DirectionInbound && m.ProviderMessageID != nil {
		if existing := r.findMessageLocked(m.Channel, *m.ProviderMessageID); existing != nil {
			return existing, nil
		}
	}
	r.nextID++
	m.ID = fmt.Sprintf("msg-%d", r.nextID)
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.messages = append(r.messages, m)
	return &r.messages[len(r.messages)-1], nil
}

func (r *memoryRepository) ListMessagesByConversation(ctx context.Context, conversationID string, filter repository.MessageFilter) ([]messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []messaging.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if filter.Direction != nil && m.Direction != *filter.Direction {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MessageTimestamp.Before(out[j].MessageTimestamp)
	})
	return out, nil
}

func (r *memoryRepository) UpdateMessageStatus(ctx context.Context, messageID string, status messaging.Status) (*messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		m := &r.messages[i]
		if m.ID != messageID {
			continue
		}
		if !m.Status.CanTransitionTo(status) {
			return nil, fmt.Errorf("%w: cannot transition from %s to %s", messaging.ErrValidation, m.Status, status)
		}
		m.Status = status
		m.UpdatedAt = time.Now().UTC()
		return m, nil
	}
	return nil, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// stubDispatcher satisfies MessageDispatcher without network traffic.
type stubDispatcher struct {
	result provider.SendResult
	err    error
	calls  int
}

func (d *stubDispatcher) Dispatch(ctx context.Context, req messaging.OutboundRequest) (provider.SendResult, error) {
	d.calls++
	return d.result, d.err
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	stored []messaging.Message
}

func (n *recordingNotifier) MessageStored(conversationID string, m messaging.Message) {
	n.stored = append(n.stored, m)
}

func smsWebhookPayload(sid string) map[string]any {
	return map[string]any{
		"From":       "+18045551234",
		"To":         "+12016661234",
		"Body":       "inbound text",
		"MessageSid": sid,
		"Timestamp":  "2024-11-01T14:00:00Z",
	}
}

func TestReceiveWebhookStoresMessage(t *testing.T) {
	repo := newMemoryRepository()
	notifier := &recordingNotifier{}
	uc := NewReceiveWebhookUseCase(repo, nil, notifier)

	stored, err := uc.Execute(context.Background(), smsWebhookPayload("SM100"), webhook.HintSMS)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	require.Equal(t, messaging.DirectionInbound, stored.Direction)
	require.Equal(t, messaging.StatusDelivered, stored.Status)
	require.Len(t, repo.conversations, 1)
	require.Len(t, notifier.stored, 1)
}

func TestReceiveWebhookRedeliveryIsIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	first, err := uc.Execute(context.Background(), smsWebhookPayload("SM200"), webhook.HintSMS)
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), smsWebhookPayload("SM200"), webhook.HintSMS)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.messages, 1)
}

func TestReceiveWebhookReversedAddressesShareConversation(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	a, err := uc.Execute(context.Background(), smsWebhookPayload("SM300"), webhook.HintSMS)
	require.NoError(t, err)

	reply := map[string]any{
		"From":       "+12016661234",
		"To":         "+18045551234",
		"Body":       "reply",
		"MessageSid": "SM301",
	}
	b, err := uc.Execute(context.Background(), reply, webhook.HintSMS)
	require.NoError(t, err)

	require.Equal(t, a.ConversationID, b.ConversationID)
	require.Len(t, repo.conversations, 1)
}

func TestReceiveWebhookValidationLeavesNoState(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	payload := smsWebhookPayload("SM400")
	delete(payload, "Body")
	_, err := uc.Execute(context.Background(), payload, webhook.HintSMS)

	require.ErrorIs(t, err, messaging.ErrValidation)
	require.Empty(t, repo.conversations)
	require.Empty(t, repo.messages)
}

func TestReceiveWebhookStorageFailureWrapped(t *testing.T) {
	repo := newMemoryRepository()
	repo.failSave = true
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	_, err := uc.Execute(context.Background(), smsWebhookPayload("SM500"), webhook.HintSMS)
	require.ErrorIs(t, err, ErrPersistence)
}

func TestSendMessageHappyPath(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{result: provider.SendResult{ProviderMessageID: "SM600", Status: messaging.StatusSent}}
	notifier := &recordingNotifier{}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, notifier)

	stored, err := uc.Execute(context.Background(), SendMessageInput{
		FromAddress: "+12016661234",
		ToAddress:   "+18045551234",
		Body:        "outbound text",
	})
	require.NoError(t, err)
	require.Equal(t, messaging.DirectionOutbound, stored.Direction)
	require.Equal(t, messaging.StatusSent, stored.Status)
	require.Equal(t, messaging.ChannelSMS, stored.Channel)
	require.NotNil(t, stored.ProviderMessageID)
	require.Equal(t, "SM600", *stored.ProviderMessageID)
	require.Equal(t, 1, dispatch.calls)
	require.Len(t, notifier.stored, 1)
}

func TestSendMessageDispatchFailureStoresNothing(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{err: fmt.Errorf("%w: provider down", provider.ErrUnavailable)}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, nil)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		FromAddress: "+12016661234",
		ToAddress:   "+18045551234",
		Body:        "will not send",
	})
	require.ErrorIs(t, err, provider.ErrUnavailable)
	require.Empty(t, repo.messages)
}

func TestSendMessageRateLimitPassesThrough(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{err: fmt.Errorf("%w: slow down", provider.ErrRateLimited)}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, nil)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		FromAddress: "+12016661234",
		ToAddress:   "+18045551234",
		Body:        "throttled",
	})
	require.ErrorIs(t, err, provider.ErrRateLimited)
	require.Empty(t, repo.messages)
}

func TestSendMessageDefaultSender(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{result: provider.SendResult{ProviderMessageID: "em-700"}}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{EmailFrom: "service@example.com"}, nil, nil)

	stored, err := uc.Execute(context.Background(), SendMessageInput{
		ToAddress: "user@example.com",
		Body:      "from default sender",
	})
	require.NoError(t, err)
	require.Equal(t, "service@example.com", stored.FromAddress)
	require.Equal(t, messaging.ChannelEmail, stored.Channel)
	// Absent provider status on a 2xx response records as delivered.
	require.Equal(t, messaging.StatusDelivered, stored.Status)
}

func TestSendMessageNoDefaultSenderFails(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, nil)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		ToAddress: "user@example.com",
		Body:      "no sender",
	})
	require.ErrorIs(t, err, messaging.ErrValidation)
	require.Zero(t, dispatch.calls)
}

func TestSendMessageValidatesInput(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, nil)

	_, err := uc.Execute(context.Background(), SendMessageInput{FromAddress: "+12016661234", Body: "x"})
	require.ErrorIs(t, err, messaging.ErrValidation)

	_, err = uc.Execute(context.Background(), SendMessageInput{FromAddress: "+12016661234", ToAddress: "+18045551234", Body: "  "})
	require.ErrorIs(t, err, messaging.ErrValidation)
	require.Zero(t, dispatch.calls)
}

func TestSendThenReceiveSharesConversation(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{result: provider.SendResult{ProviderMessageID: "SM800"}}
	sendUC := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, nil)
	receiveUC := NewReceiveWebhookUseCase(repo, nil, nil)

	sent, err := sendUC.Execute(context.Background(), SendMessageInput{
		FromAddress: "+12016661234",
		ToAddress:   "+18045551234",
		Body:        "ping",
	})
	require.NoError(t, err)

	received, err := receiveUC.Execute(context.Background(), smsWebhookPayload("SM801"), webhook.HintSMS)
	require.NoError(t, err)
	require.Equal(t, sent.ConversationID, received.ConversationID)

	msgs, err := NewGetConversationMessagesUseCase(repo).Execute(context.Background(), GetConversationMessagesInput{
		ConversationID: sent.ConversationID,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestListConversations(t *testing.T) {
	repo := newMemoryRepository()
	receiveUC := NewReceiveWebhookUseCase(repo, nil, nil)

	_, err := receiveUC.Execute(context.Background(), smsWebhookPayload("SM900"), webhook.HintSMS)
	require.NoError(t, err)

	uc := NewListConversationsUseCase(repo)
	summaries, err := uc.Execute(context.Background(), ListConversationsInput{Limit: 50})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 1, summaries[0].MessageCount)
	require.NotNil(t, summaries[0].LastMessageTimestamp)

	filtered, err := uc.Execute(context.Background(), ListConversationsInput{Limit: 50, ParticipantAddress: "+15550000000"})
	require.NoError(t, err)
	require.Empty(t, filtered)
}

func TestGetConversationMessagesUnknownConversation(t *testing.T) {
	uc := NewGetConversationMessagesUseCase(newMemoryRepository())
	_, err := uc.Execute(context.Background(), GetConversationMessagesInput{ConversationID: "missing"})
	require.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestGetConversationMessagesDirectionFilter(t *testing.T) {
	repo := newMemoryRepository()
	dispatch := &stubDispatcher{result: provider.SendResult{ProviderMessageID: "SM950"}}
	sendUC := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, nil, nil)
	receiveUC := NewReceiveWebhookUseCase(repo, nil, nil)

	sent, err := sendUC.Execute(context.Background(), SendMessageInput{
		FromAddress: "+12016661234",
		ToAddress:   "+18045551234",
		Body:        "ping",
	})
	require.NoError(t, err)
	_, err = receiveUC.Execute(context.Background(), smsWebhookPayload("SM951"), webhook.HintSMS)
	require.NoError(t, err)

	inbound := messaging.DirectionInbound
	msgs, err := NewGetConversationMessagesUseCase(repo).Execute(context.Background(), GetConversationMessagesInput{
		ConversationID: sent.ConversationID,
		Direction:      &inbound,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, messaging.DirectionInbound, msgs[0].Direction)
}

func TestResolveConcurrentCallsConverge(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	const workers = 16
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := uc.Execute(context.Background(), smsWebhookPayload(fmt.Sprintf("SM-c%d", i)), webhook.HintSMS)
			errs[i] = err
			if err == nil {
				ids[i] = stored.ConversationID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	require.Len(t, repo.conversations, 1)
	require.Len(t, repo.messages, workers)
}

func TestResolveLostCreationRaceReturnsWinner(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	winner, err := uc.Execute(context.Background(), smsWebhookPayload("SM-w1"), webhook.HintSMS)
	require.NoError(t, err)

	// From here participant lookups see nothing, so the next resolve runs
	// the interleaving of a caller whose find executed before the winner
	// committed: find nil, create yields the winner's row.
	repo.hideConversationLookup = true

	loser, err := uc.Execute(context.Background(), smsWebhookPayload("SM-w2"), webhook.HintSMS)
	require.NoError(t, err)
	require.Equal(t, winner.ConversationID, loser.ConversationID)
	require.Len(t, repo.conversations, 1)
}

func TestReceiveWebhookSaveRaceReturnsStoredMessage(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewReceiveWebhookUseCase(repo, nil, nil)

	first, err := uc.Execute(context.Background(), smsWebhookPayload("SM-r1"), webhook.HintSMS)
	require.NoError(t, err)

	// Hide the dedup lookup: the redelivery's pre-insert check sees no
	// stored row and the save itself must resolve the conflict, the way a
	// concurrent insert hits the unique index.
	repo.hideMessageLookup = true

	second, err := uc.Execute(context.Background(), smsWebhookPayload("SM-r1"), webhook.HintSMS)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.messages, 1)
}

func participantCacheKey() string {
	return conversationCacheKey(messaging.ParticipantKey([]string{"+18045551234", "+12016661234"}))
}

func TestResolverCacheHitSkipsParticipantLookup(t *testing.T) {
	repo := newMemoryRepository()
	cache := cacheadapter.NewMemoryCache(0)
	uc := NewReceiveWebhookUseCase(repo, cache, nil)

	first, err := uc.Execute(context.Background(), smsWebhookPayload("SM-h1"), webhook.HintSMS)
	require.NoError(t, err)
	require.Equal(t, 1, repo.createCalls)

	// Write-through: the participant key now maps to the conversation id.
	cached, err := cache.Get(context.Background(), participantCacheKey())
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, cached)

	// With participant lookups hidden the only route back to the
	// conversation is cache id then GetConversation.
	repo.hideConversationLookup = true

	second, err := uc.Execute(context.Background(), smsWebhookPayload("SM-h2"), webhook.HintSMS)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Equal(t, 1, repo.createCalls)
}

func TestResolverStaleCacheEntryFallsThrough(t *testing.T) {
	repo := newMemoryRepository()
	cache := cacheadapter.NewMemoryCache(0)
	uc := NewReceiveWebhookUseCase(repo, cache, nil)

	first, err := uc.Execute(context.Background(), smsWebhookPayload("SM-s1"), webhook.HintSMS)
	require.NoError(t, err)

	// Poison the entry with an id no conversation has; the repository
	// stays authoritative.
	require.NoError(t, cache.Set(context.Background(), participantCacheKey(), "00000000-0000-0000-0000-000000000000", 0))

	second, err := uc.Execute(context.Background(), smsWebhookPayload("SM-s2"), webhook.HintSMS)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)

	// The fall-through repaired the entry.
	cached, err := cache.Get(context.Background(), participantCacheKey())
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, cached)
}

func TestSendMessageUsesConversationCache(t *testing.T) {
	repo := newMemoryRepository()
	cache := cacheadapter.NewMemoryCache(0)
	dispatch := &stubDispatcher{result: provider.SendResult{ProviderMessageID: "SM-k1"}}
	uc := NewSendMessageUseCase(repo, dispatch, SenderDefaults{}, cache, nil)

	in := SendMessageInput{
		FromAddress: "+12016661234",
		ToAddress:   "+18045551234",
		Body:        "cached resolve",
	}
	first, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, repo.createCalls)

	repo.hideConversationLookup = true
	dispatch.result.ProviderMessageID = "SM-k2"

	second, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Equal(t, 1, repo.createCalls)
}

func TestListConversationsLimitBounds(t *testing.T) {
	repo := newMemoryRepository()
	uc := NewListConversationsUseCase(repo)

	// Zero falls back to the storage default.
	_, err := uc.Execute(context.Background(), ListConversationsInput{})
	require.NoError(t, err)

	_, err = uc.Execute(context.Background(), ListConversationsInput{Limit: 1001})
	require.ErrorIs(t, err, messaging.ErrValidation)
	_, err = uc.Execute(context.Background(), ListConversationsInput{Limit: -1})
	require.ErrorIs(t, err, messaging.ErrValidation)
}
