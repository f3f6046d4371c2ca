package chart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityJSONRoundTrip(t *testing.T) {
	task := DownloadTask{ChartID: "us5tx22m", URL: "https://charts.example.com/us5tx22m.zip", Priority: PriorityHigh}

	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"priority":"high"`)

	var back DownloadTask
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, PriorityHigh, back.Priority)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityNormal, ParsePriority("normal"))
	assert.Equal(t, PriorityNormal, ParsePriority(""))
	assert.Equal(t, PriorityNormal, ParsePriority("urgent"))
}

func TestPriorityUnmarshalRejectsNumbers(t *testing.T) {
	var p Priority
	assert.Error(t, json.Unmarshal([]byte(`2`), &p))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusDownloading.Terminal())
	assert.False(t, StatusPaused.Terminal())
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "us5tx22m.zip", FileName("chart-1", "https://charts.example.com/enc/us5tx22m.zip"))
	assert.Equal(t, "chart.zip", FileName("chart-1", "https://charts.example.com/enc/chart.zip?rev=4"))
}

func TestFileNameFallsBackToChartID(t *testing.T) {
	assert.Equal(t, "chart-1.zip", FileName("chart-1", "https://charts.example.com"))
	assert.Equal(t, "chart-1.zip", FileName("chart-1", "https://charts.example.com/"))
	assert.Equal(t, "chart-1.zip", FileName("chart-1", "://not-a-url"))
}

func TestPartPathBesideFinal(t *testing.T) {
	final := FinalPath("/data/charts", "c1", "https://example.com/c1.zip")
	part := PartPath("/data/charts", "c1", "https://example.com/c1.zip")
	assert.Equal(t, final+PartSuffix, part)
}
