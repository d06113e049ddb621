package workdispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadWorkValidate(t *testing.T) {
	valid := DownloadWork{
		TaskID:          "t1",
		ProjectID:       "p1",
		InventoryItemID: "i1",
		Purl:            "pkg:npm/leftpad@1.3.0",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*DownloadWork)
	}{
		{"missing task id", func(w *DownloadWork) { w.TaskID = "" }},
		{"missing project id", func(w *DownloadWork) { w.ProjectID = "" }},
		{"missing item id", func(w *DownloadWork) { w.InventoryItemID = "" }},
		{"no reference at all", func(w *DownloadWork) { w.URL, w.Purl, w.Name = "", "", "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := valid
			tt.mutate(&w)
			assert.Error(t, w.Validate())
		})
	}
}

func TestSpdxWorkValidate(t *testing.T) {
	valid := SpdxWork{
		TaskID:    "t1",
		ProjectID: "p1",
		Bucket:    "SBOM_UPLOADS",
		ObjectKey: "doc.spdx.json",
	}
	require.NoError(t, valid.Validate())

	missingKey := valid
	missingKey.ObjectKey = ""
	assert.Error(t, missingKey.Validate())

	missingProject := valid
	missingProject.ProjectID = ""
	assert.Error(t, missingProject.Validate())
}

func TestReportWorkValidate(t *testing.T) {
	valid := ReportWork{
		TaskID:               "t1",
		ScannerInitializerID: "scan-42",
		Row:                  map[string]any{"Component": "zlib 1.2.13"},
	}
	require.NoError(t, valid.Validate())

	empty := valid
	empty.Row = nil
	assert.Error(t, empty.Validate())
}

func TestVulnerabilityWorkValidate(t *testing.T) {
	valid := VulnerabilityWork{TaskID: "t1", SoftwareComponentID: "c1"}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.SoftwareComponentID = ""
	assert.Error(t, missing.Validate())
}
