package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeCatalog() *Catalog {
	return &Catalog{Profiles: []Profile{
		{Purpose: PhaseAssistant, Provider: "fake", Model: "scripted"},
		{Purpose: PhaseIntegrity, Provider: "fake", Model: "scripted"},
	}}
}

func TestModelRegistryBuildCaches(t *testing.T) {
	r := NewModelRegistry(nil)
	require.NoError(t, r.LoadProfiles(fakeCatalog()))
	t.Cleanup(func() { _ = r.Close() })

	a, err := r.Build(context.Background(), PhaseAssistant)
	require.NoError(t, err)
	b, err := r.Build(context.Background(), "Assistant")
	require.NoError(t, err)
	require.Same(t, a, b, "purpose lookup is case-insensitive and cached")

	other, err := r.Build(context.Background(), PhaseIntegrity)
	require.NoError(t, err)
	require.NotSame(t, a, other)
}

func TestModelRegistryBuiltClientKeepsToolSurface(t *testing.T) {
	r := NewModelRegistry(nil)
	require.NoError(t, r.RegisterFactory("scripted", func(ctx context.Context, p Profile) (Client, error) {
		return NewFakeToolClient(Message{Text: "three courses are open"}), nil
	}))
	require.NoError(t, r.LoadProfiles(&Catalog{Profiles: []Profile{
		{Purpose: PhaseAssistant, Provider: "scripted", Model: "any", RPS: 100, Burst: 5, Retries: 2},
	}}))
	t.Cleanup(func() { _ = r.Close() })

	cli, err := r.Build(context.Background(), PhaseAssistant)
	require.NoError(t, err)

	tc, ok := AsToolClient(cli)
	require.True(t, ok, "budgets and retries must not strip tool support")
	msg, err := tc.GenerateWithTools(context.Background(), ToolRequest{
		Messages: []Message{{Role: RoleUser, Text: "what courses are open?"}},
	})
	require.NoError(t, err)
	require.Equal(t, "three courses are open", msg.Text)
}

func TestModelRegistryRejectsUnknownProvider(t *testing.T) {
	r := NewModelRegistry(nil)
	err := r.LoadProfiles(&Catalog{Profiles: []Profile{
		{Purpose: PhaseAssistant, Provider: "watson", Model: "x"},
	}})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestModelRegistryUnknownPurpose(t *testing.T) {
	r := NewModelRegistry(nil)
	require.NoError(t, r.LoadProfiles(fakeCatalog()))
	_, err := r.Build(context.Background(), "summarizer")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestModelRegistryFactoryValidation(t *testing.T) {
	r := NewModelRegistry(nil)
	require.ErrorIs(t, r.RegisterFactory("", func(ctx context.Context, p Profile) (Client, error) {
		return NewFakeClient(), nil
	}), ErrProviderRequired)
	require.ErrorIs(t, r.RegisterFactory("x", nil), ErrFactoryRequired)
}
