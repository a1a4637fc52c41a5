package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type generatorMock struct {
	mock.Mock
}

func (m *generatorMock) Generate(ctx context.Context, prompt string) (types.Flyer, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(types.Flyer), args.Error(1)
}

type uploaderMock struct {
	mock.Mock
}

func (m *uploaderMock) Upload(ctx context.Context, key string, flyer types.Flyer) (string, error) {
	args := m.Called(ctx, key, flyer)
	return args.String(0), args.Error(1)
}

func newTestPipeline(gen Generator, up Uploader) *Pipeline {
	p := NewPipeline(gen, up, "flyers", time.Second, sl.Discard())
	p.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return p
}

func TestPipeline_UploadsSuppliedFlyer(t *testing.T) {
	gen := new(generatorMock)
	up := new(uploaderMock)
	p := newTestPipeline(gen, up)

	flyer := &types.Flyer{ContentType: "image/jpeg", Data: []byte("jpeg")}
	up.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "flyers/jazz-night-") && strings.HasSuffix(key, ".jpg")
	}), *flyer).Return("https://cdn/x.jpg", nil).Once()

	url, err := p.FlyerURL(context.Background(), types.Event{Title: "Jazz Night"}, flyer)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.jpg", url)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	up.AssertExpectations(t)
}

func TestPipeline_GeneratesWhenFlyerMissing(t *testing.T) {
	gen := new(generatorMock)
	up := new(uploaderMock)
	p := newTestPipeline(gen, up)

	generated := types.Flyer{ContentType: "image/png", Data: []byte("png")}
	gen.On("Generate", mock.Anything, Prompt("Jazz Night", "Live trio")).Return(generated, nil).Once()
	up.On("Upload", mock.Anything, mock.Anything, generated).Return("https://cdn/y.png", nil).Once()

	url, err := p.FlyerURL(context.Background(), types.Event{Title: "Jazz Night", Description: "Live trio"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/y.png", url)
	gen.AssertExpectations(t)
	up.AssertExpectations(t)
}

func TestPipeline_RetriesOnce(t *testing.T) {
	gen := new(generatorMock)
	up := new(uploaderMock)
	p := newTestPipeline(gen, up)

	flyer := &types.Flyer{ContentType: "image/png", Data: []byte("png")}
	up.On("Upload", mock.Anything, mock.Anything, *flyer).Return("", errors.New("connection reset")).Once()
	up.On("Upload", mock.Anything, mock.Anything, *flyer).Return("https://cdn/z.png", nil).Once()

	url, err := p.FlyerURL(context.Background(), types.Event{Title: "Retry"}, flyer)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/z.png", url)
	up.AssertNumberOfCalls(t, "Upload", 2)
}

func TestPipeline_GivesUpAfterRetry(t *testing.T) {
	gen := new(generatorMock)
	up := new(uploaderMock)
	p := newTestPipeline(gen, up)

	gen.On("Generate", mock.Anything, mock.Anything).Return(types.Flyer{}, errors.New("quota exceeded"))

	_, err := p.FlyerURL(context.Background(), types.Event{Title: "Broken"}, nil)

	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "quota exceeded")
	gen.AssertNumberOfCalls(t, "Generate", 2)
	up.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_NoGeneratorConfigured(t *testing.T) {
	p := newTestPipeline(nil, new(uploaderMock))

	_, err := p.FlyerURL(context.Background(), types.Event{Title: "x"}, nil)

	assert.ErrorIs(t, err, ErrUpstream)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/flyers/", "Summer Fest 2026!", "image/png")
	assert.True(t, strings.HasPrefix(key, "flyers/summer-fest-2026-"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	assert.True(t, strings.HasPrefix(ObjectKey("", "???", "application/x-unknown"), "event-"))
}

func TestPrompt(t *testing.T) {
	assert.Equal(t,
		`Design an eye-catching promotional flyer for an event titled "Jazz". Event details: Live trio. Bold typography, vibrant colours, no small print.`,
		Prompt(" Jazz ", "Live trio"),
	)
	assert.NotContains(t, Prompt("Jazz", ""), "Event details")
}
