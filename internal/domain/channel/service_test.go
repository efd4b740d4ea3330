package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
)

type fakeRepo struct {
	channels  []*Channel
	findErr   error
	updatedID string
	connected bool
	config    map[string]any
}

func (f *fakeRepo) find(match func(*Channel) bool) (*Channel, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, ch := range f.channels {
		if ch.RetiredAt == nil && match(ch) {
			return ch, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindByInstanceName(_ context.Context, name string) (*Channel, error) {
	return f.find(func(c *Channel) bool { return c.InstanceName() == name })
}

func (f *fakeRepo) FindByInstanceID(_ context.Context, id string) (*Channel, error) {
	return f.find(func(c *Channel) bool { return c.InstanceID() == id })
}

func (f *fakeRepo) FindByID(_ context.Context, id string) (*Channel, error) {
	return f.find(func(c *Channel) bool { return c.ID == id })
}

func (f *fakeRepo) FindActiveByAgentID(_ context.Context, agentID string) (*Channel, error) {
	return f.find(func(c *Channel) bool { return c.AgentID != nil && *c.AgentID == agentID })
}

func (f *fakeRepo) FindAgent(context.Context, string) (*Agent, error) { return nil, nil }

func (f *fakeRepo) UpdateConnection(_ context.Context, id string, connected bool, config map[string]any) error {
	f.updatedID = id
	f.connected = connected
	f.config = config
	return nil
}

func newChannel(id, name, instanceID string) *Channel {
	return &Channel{
		ID: id,
		Config: map[string]any{
			ConfigEvolutionAPI: map[string]any{
				ConfigInstanceName: name,
				ConfigInstanceID:   instanceID,
				"apiKey":           "k",
			},
		},
	}
}

func TestResolve_ByNameAndByIDReturnSameChannel(t *testing.T) {
	ch := newChannel("ch-1", "sales-line", "inst-123")
	repo := &fakeRepo{channels: []*Channel{ch}}
	svc := NewService(repo, audit.Nop{}, zerolog.Nop())
	ctx := context.Background()

	byName, err := svc.Resolve(ctx, "sales-line", "")
	require.NoError(t, err)
	byID, err := svc.Resolve(ctx, "renamed-line", "inst-123")
	require.NoError(t, err)

	require.NotNil(t, byName)
	require.NotNil(t, byID)
	assert.Equal(t, byName.ID, byID.ID)
}

func TestResolve_NoMatchIsNotAnError(t *testing.T) {
	sink := audit.NewMemorySink()
	svc := NewService(&fakeRepo{channels: []*Channel{newChannel("ch-1", "a", "b")}}, sink, zerolog.Nop())

	ch, err := svc.Resolve(context.Background(), "other", "other-id")

	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.Len(t, sink.Filter(audit.KindSuppressed), 1)
}

func TestResolve_SkipsRetiredChannels(t *testing.T) {
	retired := newChannel("old", "sales-line", "inst-1")
	now := time.Now()
	retired.RetiredAt = &now
	current := newChannel("new", "sales-line", "inst-1")
	svc := NewService(&fakeRepo{channels: []*Channel{retired, current}}, audit.Nop{}, zerolog.Nop())

	ch, err := svc.Resolve(context.Background(), "sales-line", "")

	require.NoError(t, err)
	assert.Equal(t, "new", ch.ID)
}

func TestResolve_PropagatesStorageErrors(t *testing.T) {
	svc := NewService(&fakeRepo{findErr: errors.New("db down")}, audit.Nop{}, zerolog.Nop())

	_, err := svc.Resolve(context.Background(), "sales-line", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestApplyConnectionUpdate_MergesStatus(t *testing.T) {
	ch := newChannel("ch-1", "sales-line", "inst-1")
	repo := &fakeRepo{channels: []*Channel{ch}}
	svc := NewService(repo, audit.Nop{}, zerolog.Nop())
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := svc.ApplyConnectionUpdate(context.Background(), ch, ConnectionUpdate{State: "open", StatusReason: 200, UpdatedAt: at})
	require.NoError(t, err)

	assert.Equal(t, "ch-1", repo.updatedID)
	assert.True(t, repo.connected)
	evo := repo.config[ConfigEvolutionAPI].(map[string]any)
	assert.Equal(t, "open", evo[ConfigStatus])
	assert.Equal(t, "sales-line", evo[ConfigInstanceName])
	assert.Equal(t, "k", evo["apiKey"])
	status := repo.config[ConfigConnectionStatus].(map[string]any)
	assert.Equal(t, "open", status["state"])
	assert.Equal(t, 200, status["statusReason"])
	assert.Equal(t, "2024-05-01T12:00:00Z", status["updatedAt"])
	assert.Equal(t, "open", ch.ConnectionState())

	err = svc.ApplyConnectionUpdate(context.Background(), ch, ConnectionUpdate{State: "close"})
	require.NoError(t, err)
	assert.False(t, repo.connected)
	assert.False(t, ch.Connected)
}
