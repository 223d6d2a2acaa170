package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmbedder struct {
	res  EmbeddingResult
	err  error
	seen []string
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	r.seen = append(r.seen, text)
	return r.res, r.err
}

type probedEmbedder struct {
	recordingEmbedder
	health error
}

func (p *probedEmbedder) HealthCheck(context.Context) error { return p.health }

func TestInstructionEmbedder_Embed(t *testing.T) {
	inner := &recordingEmbedder{res: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 4}}
	emb := NewInstructionEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "lateral movement over smb")
	require.NoError(t, err)
	assert.Equal(t, []string{"query: lateral movement over smb"}, inner.seen)
	assert.Equal(t, inner.res, res)
}

func TestInstructionEmbedder_WrapsInnerError(t *testing.T) {
	down := errors.New("provider down")
	_, err := NewInstructionEmbedder(&recordingEmbedder{err: down}, "query: ").Embed(context.Background(), "x")
	assert.ErrorIs(t, err, down)
}

func TestProbeHealth(t *testing.T) {
	down := errors.New("provider down")
	ctx := context.Background()

	assert.NoError(t, ProbeHealth(ctx, &recordingEmbedder{}), "no check means healthy")
	assert.NoError(t, ProbeHealth(ctx, &probedEmbedder{}))
	assert.ErrorIs(t, ProbeHealth(ctx, &probedEmbedder{health: down}), down)
	assert.ErrorIs(t, NewInstructionEmbedder(&probedEmbedder{health: down}, "q: ").HealthCheck(ctx), down)
}

func TestSourceError_Unwrap(t *testing.T) {
	err := &SourceError{Source: "alert", Err: ErrBranchTimeout}
	assert.ErrorIs(t, err, ErrBranchTimeout)
	assert.Equal(t, "source alert: search branch timed out", err.Error())
}
