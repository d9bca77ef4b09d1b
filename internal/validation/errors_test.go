package validation

import (
	"encoding/json"
	"testing"

	"github.com/antonholmquist/jason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleErrors(t *testing.T) Errors {
	t.Helper()
	errs, err := Parse([]byte(`[
		[[], "config is invalid"],
		[["filters", "lowpass", "parameters", "freq"], "must be positive"],
		[["filters", "lowpass"], "unused filter"],
		[["pipeline", 1, "names", 0], "unknown filter"],
		[["pipeline", 1], "channel out of range"],
		[["filters", "lowpass"], "second message"]
	]`))
	require.NoError(t, err)
	return errs
}

func TestParseNormalizesIndices(t *testing.T) {
	t.Parallel()

	errs := sampleErrors(t)
	require.Equal(t, 6, errs.Len())
	assert.Equal(t, Path{"pipeline", 1, "names", 0}, errs.Entries()[3].Path)
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`[["filters", "missing path array"]]`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"ok": true}`))
	require.Error(t, err)
}

func TestForSubpath(t *testing.T) {
	t.Parallel()

	errs := sampleErrors(t)

	lowpass := errs.ForSubpath("filters", "lowpass")
	assert.Equal(t, 3, lowpass.Len())
	assert.Equal(t, "unused filter\nsecond message", lowpass.RootMessage())
	assert.Equal(t, "must be positive", lowpass.MessageFor("parameters", "freq"))

	step := errs.ForSubpath("pipeline", 1)
	assert.Equal(t, "channel out of range", step.RootMessage())
	assert.Equal(t, "unknown filter", step.ForSubpath("names").MessageFor(0))
	assert.Equal(t, "unknown filter", errs.MessageFor("pipeline", 1.0, "names", 0), "float indices match int indices")

	assert.True(t, errs.ForSubpath("mixers").Empty())
	assert.Equal(t, errs.Len(), errs.ForSubpath().Len())
}

func TestRootMessage(t *testing.T) {
	t.Parallel()

	errs := sampleErrors(t)
	assert.Equal(t, "config is invalid", errs.RootMessage())
	assert.Empty(t, NewErrors().RootMessage())
}

func TestAsText(t *testing.T) {
	t.Parallel()

	errs := NewErrors(
		Entry{Path: Path{}, Message: "root"},
		Entry{Path: NewPath("pipeline", 2, "channel"), Message: "too high"},
	)
	assert.Equal(t, "root\npipeline|2|channel: too high", errs.AsText())
}

func TestHasErrorsUnder(t *testing.T) {
	t.Parallel()

	errs := sampleErrors(t)
	assert.True(t, errs.HasErrorsUnder("filters"))
	assert.False(t, errs.HasErrorsUnder("devices"))
}

func TestErrorsForPath(t *testing.T) {
	t.Parallel()

	entries := sampleErrors(t).Entries()

	assert.Equal(t, "unused filter\nsecond message", ErrorsForPath(entries, Path{"filters", "lowpass"}, false))
	assert.Equal(t, "must be positive\nunused filter\nsecond message", ErrorsForPath(entries, Path{"filters", "lowpass"}, true))
	assert.Empty(t, ErrorsForPath(entries, Path{"filters"}, false))
	assert.Equal(t, "unknown filter\nchannel out of range", ErrorsForPath(entries, Path{"pipeline"}, true))
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Path{"pipeline", 3, "names", 0}, ParsePath("/pipeline/3/names/0"))
	assert.Equal(t, Path{}, ParsePath(""))
	assert.Equal(t, Path{"filters", "-1"}, ParsePath("filters/-1"))
}

func TestErrorsJSONRoundTrip(t *testing.T) {
	t.Parallel()

	errs := sampleErrors(t)
	data, err := json.Marshal(errs)
	require.NoError(t, err)

	var back Errors
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, errs.Entries(), back.Entries())

	data, err = json.Marshal(Errors{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFromValuesSharesPairDecoding(t *testing.T) {
	t.Parallel()

	v, err := jason.NewValueFromBytes([]byte(`[[["mixers", "to4", "mapping", 2.0], "dest out of range"], [[], "bad"]]`))
	require.NoError(t, err)
	items, err := v.Array()
	require.NoError(t, err)

	errs, err := FromValues(items)
	require.NoError(t, err)
	require.Equal(t, 2, errs.Len())
	assert.Equal(t, Path{"mixers", "to4", "mapping", 2}, errs.Entries()[0].Path)
	assert.Equal(t, "bad", errs.RootMessage())

	v, err = jason.NewValueFromBytes([]byte(`[[["devices", true], "bool path element"]]`))
	require.NoError(t, err)
	items, err = v.Array()
	require.NoError(t, err)
	_, err = FromValues(items)
	require.Error(t, err)
}

func TestParseNullIsEmpty(t *testing.T) {
	t.Parallel()

	errs, err := Parse([]byte(`null`))
	require.NoError(t, err)
	assert.True(t, errs.Empty())

	_, err = Parse([]byte(`[[["filters"], 42]]`))
	require.Error(t, err, "message must be a string")
}
