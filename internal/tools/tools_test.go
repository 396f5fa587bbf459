package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/properties"
	"github.com/ziadkadry99/hostkb/internal/retriever"
	"github.com/ziadkadry99/hostkb/internal/searchengine"
)

// fakeTool lets tests script a tool's behavior.
type fakeTool struct {
	name string
	fn   func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *fakeTool) Definition() mcp.Tool {
	return mcp.NewTool(f.name, mcp.WithDescription("fake"), mcp.WithString("q", mcp.Required()))
}

func (f *fakeTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	return f.fn(ctx, args)
}

type fakeSearcher struct {
	query string
	opts  retriever.Options
}

func (f *fakeSearcher) Retrieve(_ context.Context, query string, opts retriever.Options) (*retriever.Response, error) {
	f.query, f.opts = query, opts
	return &retriever.Response{
		Chunks: []retriever.Result{{Chunk: searchengine.Chunk{DocumentID: 1, Text: "[pricing]\n120 EUR"}, Score: 0.9}},
		Count:  1,
	}, nil
}

type fakeProperties map[int64]properties.Property

func (f fakeProperties) Get(_ context.Context, id int64) (*properties.Property, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("property", id)
	}
	return &p, nil
}

func float(v float64) *float64 { return &v }
func int64p(v int64) *int64    { return &v }

var directory = fakeProperties{
	7: {ID: 7, OwnerID: "42", Name: "Villa Azur", City: "Nice", Latitude: float(48.8566), Longitude: float(2.3522), MaxGuests: 6, NightlyRate: 150, Currency: "EUR", CheckIn: "16:00"},
	8: {ID: 8, OwnerID: "99", Name: "Loft", Latitude: float(51.5074), Longitude: float(-0.1278)},
	9: {ID: 9, OwnerID: "42", Name: "Cabin"},
}

func TestRegistryRegisterAndSpecs(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeTool{name: "b"}))
	require.NoError(t, r.Register(&fakeTool{name: "a"}))
	assert.Error(t, r.Register(&fakeTool{name: "a"}))

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(specs[0].Parameters, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["required"], "q")
}

func TestRegistryInvokeIsolatesFailures(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeTool{name: "ok", fn: func(context.Context, json.RawMessage) (string, error) { return "done", nil }}))
	require.NoError(t, r.Register(&fakeTool{name: "boom", fn: func(context.Context, json.RawMessage) (string, error) { panic("kaboom") }}))
	require.NoError(t, r.Register(&fakeTool{name: "err", fn: func(context.Context, json.RawMessage) (string, error) { return "", errors.New("bad") }}))
	ctx := context.Background()

	out := r.Invoke(ctx, "ok", nil)
	assert.True(t, out.OK)
	assert.Equal(t, "done", out.Output)

	for _, name := range []string{"boom", "err", "missing"} {
		out := r.Invoke(ctx, name, nil)
		assert.False(t, out.OK, name)
		assert.NotEmpty(t, out.Error, name)
		assert.True(t, errors.Is(out.Err, apperr.ErrToolExecution), name)
	}
}

func TestDecodeArgsRejectsUnknownFields(t *testing.T) {
	var args knowledgeSearchArgs
	err := decodeArgs(json.RawMessage(`{"query":"x","owner_id":"99"}`), &args)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	require.NoError(t, decodeArgs(nil, &args))
	require.NoError(t, decodeArgs(json.RawMessage(`{"query":"wifi","top_k":3}`), &args))
	assert.Equal(t, wholeNumber(3), args.TopK)
}

func TestIntegerArgumentsAcceptWholeFloatsAndStrings(t *testing.T) {
	for _, raw := range []string{`3`, `3.0`, `"3"`, `" 3 "`, `3e0`} {
		var args knowledgeSearchArgs
		require.NoError(t, decodeArgs(json.RawMessage(`{"query":"wifi","top_k":`+raw+`}`), &args), raw)
		assert.Equal(t, wholeNumber(3), args.TopK, raw)
	}
	for _, raw := range []string{`2.5`, `"three"`, `true`, `[3]`, `"2.5"`} {
		var args knowledgeSearchArgs
		err := decodeArgs(json.RawMessage(`{"query":"wifi","top_k":`+raw+`}`), &args)
		assert.True(t, errors.Is(err, apperr.ErrValidation), raw)
	}

	s := &fakeSearcher{}
	_, err := NewKnowledgeSearch(s, retriever.DefaultOptions()).Invoke(context.Background(), json.RawMessage(`{"query":"wifi","top_k":5.0}`))
	require.NoError(t, err)
	assert.Equal(t, 5, s.opts.TopK)

	ctx := WithScope(context.Background(), Scope{OwnerID: "42"})
	out, err := NewPropertyLookup(directory).Invoke(ctx, json.RawMessage(`{"property_id":"7"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Villa Azur")

	out, err = NewDistance(directory).Invoke(ctx, json.RawMessage(`{"from_property_id":7.0,"to_lat":51.5074,"to_lon":-0.1278}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Distance from Villa Azur"))
}

func TestKnowledgeSearchUsesContextScope(t *testing.T) {
	s := &fakeSearcher{}
	tool := NewKnowledgeSearch(s, retriever.DefaultOptions())
	ctx := WithScope(context.Background(), Scope{OwnerID: "42", PropertyID: int64p(7), KBScope: documents.ScopeOwner})

	out, err := tool.Invoke(ctx, json.RawMessage(`{"query":"price per night","top_k":2}`))
	require.NoError(t, err)
	assert.Contains(t, out, "120 EUR")
	assert.Equal(t, "price per night", s.query)
	assert.Equal(t, "42", s.opts.OwnerID)
	assert.Equal(t, documents.ScopeOwner, s.opts.Scope)
	assert.Equal(t, 2, s.opts.TopK)

	_, err = tool.Invoke(ctx, json.RawMessage(`{"query":" "}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestPropertyLookupEnforcesOwner(t *testing.T) {
	tool := NewPropertyLookup(directory)
	ctx := WithScope(context.Background(), Scope{OwnerID: "42"})

	out, err := tool.Invoke(ctx, json.RawMessage(`{"property_id":7}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Villa Azur")
	assert.Contains(t, out, "Nightly rate: 150.00 EUR")
	assert.Contains(t, out, "Check-in: 16:00")

	_, err = tool.Invoke(ctx, json.RawMessage(`{"property_id":8}`))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = tool.Invoke(context.Background(), json.RawMessage(`{"property_id":8}`))
	assert.NoError(t, err, "no owner in scope means no restriction")

	_, err = tool.Invoke(ctx, json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestHaversine(t *testing.T) {
	// Paris to London.
	assert.InDelta(t, 343.5, Haversine(48.8566, 2.3522, 51.5074, -0.1278), 1.0)
	assert.InDelta(t, 0, Haversine(10, 10, 10, 10), 1e-9)
}

func TestDistanceOrigins(t *testing.T) {
	tool := NewDistance(directory)
	to := `"to_lat":51.5074,"to_lon":-0.1278`

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"from_lat":48.8566,"from_lon":2.3522,`+to+`}`))
	require.NoError(t, err)
	assert.Contains(t, out, "km")

	out, err = tool.Invoke(context.Background(), json.RawMessage(`{"from_property_id":7,`+to+`,"unit":"mi"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Distance from Villa Azur"))
	assert.Contains(t, out, "mi")

	ctx := WithScope(context.Background(), Scope{OwnerID: "42", PropertyID: int64p(7)})
	_, err = tool.Invoke(ctx, json.RawMessage(`{`+to+`}`))
	require.NoError(t, err, "property in scope is the default origin")

	_, err = tool.Invoke(ctx, json.RawMessage(`{"from_property_id":9,`+to+`}`))
	assert.Error(t, err, "property without coordinates")

	for _, bad := range []string{
		`{"to_lat":51.5}`,
		`{"from_lat":1,` + to + `}`,
		`{"from_lat":1,"from_lon":2,"to_lat":91,"to_lon":0}`,
		`{"from_lat":1,"from_lon":2,` + to + `,"unit":"furlong"}`,
		`{` + to + `}`,
	} {
		_, err := tool.Invoke(context.Background(), json.RawMessage(bad))
		assert.True(t, errors.Is(err, apperr.ErrValidation), bad)
	}
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "nice restaurants" || r.URL.Query().Get("count") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"results":[{"title":"Chez Pipo","url":"https://example.com/pipo","snippet":"Socca since 1923"},{"title":"B","url":"https://example.com/b"},{"title":"C","url":"https://example.com/c"}]}`))
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, "secret", 0)
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"nice restaurants","max_results":2}`))
	require.NoError(t, err)
	assert.Contains(t, out, "1. Chez Pipo")
	assert.Contains(t, out, "Socca since 1923")
	assert.NotContains(t, out, "3. C")
}

func TestWebSearchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewWebSearch(srv.URL, "", 0).Invoke(context.Background(), json.RawMessage(`{"query":"x"}`))
	assert.True(t, errors.Is(err, apperr.ErrProviderUnavailable))
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(Deps{Searcher: &fakeSearcher{}, Properties: directory}, nil)
	require.NoError(t, err)
	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"distance", "knowledge_search", "property_lookup"}, names)

	r, err = NewDefaultRegistry(Deps{WebSearchURL: "http://localhost"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}
