package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/yieldwise/internal/ai"
)

type stubProvider struct {
	reply string
	err   error
	calls int
	last  []ai.Message
}

func (p *stubProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	return p.reply, p.err
}

var planReq = PlanRequest{
	Location: "Enugu",
	Space:    "20 square metre backyard",
	Budget:   1500,
	Country:  "Nigeria",
	Currency: "NGN",
}

func TestGeneratePlan_SplitsSuggestions(t *testing.T) {
	prov := &stubProvider{reply: "## Plan\n\n| Item | Cost |\n|---|---|\n| Seeds | 500 |\n\n" + Sentinel + "\n**Suggested Follow-up Questions:**\n1. First?\n2. Second?\n\n3. Third?\n4. Fourth?\n"}
	a := New(prov, nil)

	res, err := a.GeneratePlan(context.Background(), planReq)
	require.NoError(t, err)

	assert.Equal(t, 1, prov.calls)
	assert.NotContains(t, res.HTML, Sentinel)
	assert.Contains(t, res.HTML, "<table>")
	assert.Equal(t, []string{"1. First?", "2. Second?", "3. Third?"}, res.Suggestions)

	prompt := prov.last[0].Content
	assert.Contains(t, prompt, "Enugu, Nigeria with a budget of NGN 1500 for a 20 square metre backyard space")
	assert.Contains(t, prompt, Sentinel)
}

func TestGeneratePlan_NoSentinel(t *testing.T) {
	a := New(&stubProvider{reply: "just a plan"}, nil)

	res, err := a.GeneratePlan(context.Background(), planReq)
	require.NoError(t, err)
	assert.Equal(t, "<p>just a plan</p>\n", res.HTML)
	assert.Empty(t, res.Suggestions)
	assert.NotNil(t, res.Suggestions)
}

func TestGeneratePlan_Unconfigured(t *testing.T) {
	a := New(nil, nil)

	res, err := a.GeneratePlan(context.Background(), planReq)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, PlanUnavailableHTML, res.HTML)
	assert.Empty(t, res.Suggestions)
	assert.False(t, a.Configured())
}

func TestGeneratePlan_BackendFailure(t *testing.T) {
	prov := &stubProvider{err: errors.New("quota exhausted: secret detail")}
	a := New(prov, nil)

	res, err := a.GeneratePlan(context.Background(), planReq)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, PlanFailedHTML, res.HTML)
	assert.NotContains(t, res.HTML, "secret detail")
	assert.Empty(t, res.Suggestions)
}

func TestDiagnose_AttachesImageAndExtractsTitle(t *testing.T) {
	prov := &stubProvider{reply: "**Title:** Early Blight on Tomato\n\nSpots everywhere.\n" + Sentinel + "\n- How fast does it spread?\n"}
	a := New(prov, nil)

	img := ai.Image{MIMEType: "image/png", Data: []byte{1, 2, 3}}
	res, err := a.Diagnose(context.Background(), DiagnosisRequest{Image: img, CropType: "Tomato"})
	require.NoError(t, err)

	assert.Equal(t, "Early Blight on Tomato", res.Title)
	assert.Equal(t, []string{"- How fast does it spread?"}, res.Suggestions)
	require.Len(t, prov.last, 1)
	assert.Equal(t, []ai.Image{img}, prov.last[0].Images)
	assert.Contains(t, prov.last[0].Content, "image of a Tomato plant/leaf")
}

func TestDiagnose_TitleFallbacks(t *testing.T) {
	a := New(&stubProvider{reply: "Leaves look fine.\n" + Sentinel + "\n1. Q?"}, nil)
	res, err := a.Diagnose(context.Background(), DiagnosisRequest{CropType: "Maize"})
	require.NoError(t, err)
	assert.Equal(t, "Diagnosis for Maize", res.Title)

	a = New(&stubProvider{reply: "# Rust"}, nil)
	res, err = a.Diagnose(context.Background(), DiagnosisRequest{CropType: "Wheat"})
	require.NoError(t, err)
	assert.Equal(t, "Plant Health Analysis: Wheat", res.Title)
}

func TestDiagnose_UnconfiguredMakesNoCall(t *testing.T) {
	a := New(nil, nil)
	res, err := a.Diagnose(context.Background(), DiagnosisRequest{CropType: "Maize"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "Error", res.Title)
	assert.Equal(t, DiagnosisUnavailableHTML, res.HTML)
}

func TestSplitSuggestions(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		primary string
		want    []string
	}{
		{"missing sentinel", "plan", "plan", []string{}},
		{"first sentinel wins", "a" + Sentinel + "1. x\n" + Sentinel + "2. y", "a", []string{"1. x"}},
		{"filters other lines", "a" + Sentinel + "\nheader\n  2. indented  \n* star\n- dash", "a", []string{"2. indented", "- dash"}},
		{"empty suggestions", "a" + Sentinel, "a", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			primary, got, _ := SplitSuggestions(tc.raw)
			assert.Equal(t, tc.primary, primary)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, len(got), 3)
			for _, s := range got {
				assert.NotEmpty(t, strings.TrimSpace(s))
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Powdery Mildew", ExtractTitle("## Powdery Mildew\nbody", "Squash"))
	assert.Equal(t, "Leaf Spot", ExtractTitle("**Title:** Leaf Spot\nbody", "Bean"))
	assert.Equal(t, "Diagnosis for Bean", ExtractTitle("Plain text", "Bean"))
	assert.Equal(t, "Diagnosis for Bean", ExtractTitle("###", "Bean"))
}

func TestRenderMarkdown_Sanitises(t *testing.T) {
	html, err := RenderMarkdown("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}
