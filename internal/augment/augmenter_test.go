package augment_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dermai-backend/internal/augment"
	"dermai-backend/internal/llm"
	"dermai-backend/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReply = `Here is the analysis.

**1. CONDITION OVERVIEW**
* Ringworm is a fungal infection of the skin
- It forms ring-shaped patches

### 2. Key Symptoms:
• Itchy, scaly rash
· Red borders

3. TREATMENT APPROACHES
   - Topical antifungal creams
   Apply twice daily for two weeks

4. PREVENTION GUIDELINES
– Keep skin dry

5. MEDICAL ATTENTION INDICATORS
* Rash spreads rapidly
`

type fakeCompleter struct {
	calls    atomic.Int32
	reply    string
	errs     []error
	messages []llm.Message
	opts     llm.Options
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	n := int(f.calls.Add(1))
	f.messages = messages
	f.opts = opts
	if n <= len(f.errs) {
		return "", f.errs[n-1]
	}
	return f.reply, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newAugmenter(t *testing.T, c llm.Completer, size int) *augment.Augmenter {
	cache, err := augment.NewCache(size)
	require.NoError(t, err)
	return augment.NewAugmenter(c, cache, "analysis-model", fastPolicy())
}

func TestParseSections(t *testing.T) {
	sections := augment.ParseSections(sampleReply)

	assert.Equal(t, []string{"Ringworm is a fungal infection of the skin", "It forms ring-shaped patches"}, sections.Overview)
	assert.Equal(t, []string{"Itchy, scaly rash", "Red borders"}, sections.Symptoms)
	assert.Equal(t, []string{"Topical antifungal creams"}, sections.Treatment)
	assert.Equal(t, []string{"Keep skin dry"}, sections.Prevention)
	assert.Equal(t, []string{"Rash spreads rapidly"}, sections.Warning)
}

func TestParseSectionsDropsLinesOutsideHeaders(t *testing.T) {
	sections := augment.ParseSections("• orphan bullet\nplain text\n")
	assert.True(t, sections.Empty())
	assert.NotNil(t, sections.Overview)
}

const boldBulletReply = `1. CONDITION OVERVIEW
* **Cellulitis**: a bacterial skin infection
- **Spread**: affects deeper layers

2. KEY SYMPTOMS
* **Redness** and swelling

3. TREATMENT APPROACHES
• **Antibiotics** as prescribed

4. PREVENTION GUIDELINES
* __Clean__ any cuts promptly

5. MEDICAL ATTENTION INDICATORS
* **Fever**: seek care the same day
`

func TestParseSectionsMarkdownBullets(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "star with bold term",
			text:     "1. CONDITION OVERVIEW\n* **Cellulitis**: a bacterial skin infection\n",
			expected: []string{"**Cellulitis**: a bacterial skin infection"},
		},
		{
			name:     "dash with bold term",
			text:     "1. CONDITION OVERVIEW\n- **Cellulitis**: a bacterial skin infection\n",
			expected: []string{"**Cellulitis**: a bacterial skin infection"},
		},
		{
			name:     "bullet with inline emphasis",
			text:     "1. CONDITION OVERVIEW\n• Usually *not* contagious\n",
			expected: []string{"Usually *not* contagious"},
		},
		{
			name:     "star and dash mixed",
			text:     "1. CONDITION OVERVIEW\n* **A**: first\n* plain\n- **B**: second\n",
			expected: []string{"**A**: first", "plain", "**B**: second"},
		},
		{
			name:     "star with tab",
			text:     "1. CONDITION OVERVIEW\n*\t**A**: tabbed\n",
			expected: []string{"**A**: tabbed"},
		},
		{
			name:     "bold line is not a bullet",
			text:     "1. CONDITION OVERVIEW\n**Note** this is prose\n*italic prose*\n",
			expected: []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, augment.ParseSections(tc.text).Overview)
		})
	}
}

func TestParseSectionsBoldBulletsUnderEachHeader(t *testing.T) {
	sections := augment.ParseSections(boldBulletReply)

	assert.Equal(t, []string{"**Cellulitis**: a bacterial skin infection", "**Spread**: affects deeper layers"}, sections.Overview)
	assert.Equal(t, []string{"**Redness** and swelling"}, sections.Symptoms)
	assert.Equal(t, []string{"**Antibiotics** as prescribed"}, sections.Treatment)
	assert.Equal(t, []string{"__Clean__ any cuts promptly"}, sections.Prevention)
	assert.Equal(t, []string{"**Fever**: seek care the same day"}, sections.Warning)
}

func TestAugmentKeepsBoldBulletReply(t *testing.T) {
	fake := &fakeCompleter{reply: boldBulletReply}
	a := newAugmenter(t, fake, 4)

	sections, ok := a.Augment(context.Background(), "REPORT")
	require.True(t, ok)
	assert.NotEqual(t, augment.FallbackAnalysis(), sections)
	assert.Equal(t, []string{"**Redness** and swelling"}, sections.Symptoms)
}

func TestAugmentCachesIdenticalReports(t *testing.T) {
	fake := &fakeCompleter{reply: sampleReply}
	a := newAugmenter(t, fake, 8)

	first, ok := a.Augment(context.Background(), "REPORT A")
	require.True(t, ok)
	second, ok := a.Augment(context.Background(), "REPORT A")
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, fake.calls.Load())

	require.Len(t, fake.messages, 2)
	assert.Equal(t, llm.RoleSystem, fake.messages[0].Role)
	assert.Contains(t, fake.messages[1].Content, "Analysis Request:\nREPORT A")
	assert.Equal(t, "analysis-model", fake.opts.Model)
	assert.Equal(t, 2000, fake.opts.MaxTokens)
	assert.InDelta(t, 0.7, fake.opts.Temperature, 1e-9)
}

func TestAugmentCacheEvictsLeastRecentlyUsed(t *testing.T) {
	fake := &fakeCompleter{reply: sampleReply}
	a := newAugmenter(t, fake, 2)
	ctx := context.Background()

	a.Augment(ctx, "A")
	a.Augment(ctx, "B")
	a.Augment(ctx, "A")
	a.Augment(ctx, "C") // evicts B
	assert.EqualValues(t, 3, fake.calls.Load())

	a.Augment(ctx, "A")
	assert.EqualValues(t, 3, fake.calls.Load())

	a.Augment(ctx, "B")
	assert.EqualValues(t, 4, fake.calls.Load())
}

func TestAugmentFallbackOnError(t *testing.T) {
	fake := &fakeCompleter{errs: []error{&llm.StatusError{StatusCode: 401, Err: errors.New("unauthorized")}}}
	a := newAugmenter(t, fake, 4)

	sections, ok := a.Augment(context.Background(), "REPORT")
	assert.False(t, ok)
	assert.Equal(t, augment.FallbackAnalysis(), sections)
	assert.Equal(t, []string{augment.FallbackMessage}, sections.Warning)
	assert.EqualValues(t, 1, fake.calls.Load())

	// Failures are not cached.
	fake.reply = sampleReply
	_, ok = a.Augment(context.Background(), "REPORT")
	assert.True(t, ok)
}

func TestAugmentRetriesTransientErrors(t *testing.T) {
	fake := &fakeCompleter{
		reply: sampleReply,
		errs:  []error{&llm.StatusError{StatusCode: 503, Err: errors.New("unavailable")}},
	}
	a := newAugmenter(t, fake, 4)

	_, ok := a.Augment(context.Background(), "REPORT")
	assert.True(t, ok)
	assert.EqualValues(t, 2, fake.calls.Load())
}

func TestAugmentFallbackOnUnparsableReply(t *testing.T) {
	fake := &fakeCompleter{reply: "I cannot help with that."}
	a := newAugmenter(t, fake, 4)

	sections, ok := a.Augment(context.Background(), "REPORT")
	assert.False(t, ok)
	assert.Equal(t, augment.FallbackAnalysis(), sections)
}

func TestAugmentWithoutCompleter(t *testing.T) {
	a := newAugmenter(t, nil, 4)
	_, ok := a.Augment(context.Background(), "REPORT")
	assert.False(t, ok)
}

func TestNewCacheRejectsZeroSize(t *testing.T) {
	_, err := augment.NewCache(0)
	assert.Error(t, err)
}
