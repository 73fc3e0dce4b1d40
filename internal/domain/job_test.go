package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Naming(t *testing.T) {
	j := Job{Category: "committee_master", Year: 2024, RemoteKey: "bulk-downloads/2024/cm24.zip"}
	assert.Equal(t, "committee_master_2024", j.Name())
	assert.Equal(t, "committee_master_2024.parquet", j.ArtifactFile())
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr string
	}{
		{
			name: "valid job",
			job:  Job{Category: "pac_summary", Year: 2022, RemoteKey: "bulk-downloads/2022/webk22.zip"},
		},
		{
			name:    "missing category",
			job:     Job{Year: 2022, RemoteKey: "k.zip"},
			wantErr: "category is required",
		},
		{
			name:    "zero year",
			job:     Job{Category: "pac_summary", RemoteKey: "k.zip"},
			wantErr: "year must be positive",
		},
		{
			name:    "missing key",
			job:     Job{Category: "pac_summary", Year: 2022},
			wantErr: "key is required",
		},
		{
			name:    "absolute key",
			job:     Job{Category: "pac_summary", Year: 2022, RemoteKey: "/etc/k.zip"},
			wantErr: "must be relative",
		},
		{
			name:    "key escaping raw dir",
			job:     Job{Category: "pac_summary", Year: 2022, RemoteKey: "a/../../k.zip"},
			wantErr: "escapes",
		},
		{
			name: "dotted file name",
			job:  Job{Category: "pac_summary", Year: 2022, RemoteKey: "..k.zip"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr string
	}{
		{
			name:   "valid",
			schema: Schema{Category: "c", Columns: []Column{{Name: "A", Type: Text()}, {Name: "B", Type: Decimal(14, 2)}}},
		},
		{
			name:    "no columns",
			schema:  Schema{Category: "c"},
			wantErr: "no columns",
		},
		{
			name:    "duplicate column",
			schema:  Schema{Category: "c", Columns: []Column{{Name: "A", Type: Text()}, {Name: "A", Type: Text()}}},
			wantErr: "duplicate column",
		},
		{
			name:    "unnamed column",
			schema:  Schema{Category: "c", Columns: []Column{{Type: Text()}}},
			wantErr: "has no name",
		},
		{
			name:    "precision too wide",
			schema:  Schema{Category: "c", Columns: []Column{{Name: "A", Type: Decimal(39, 2)}}},
			wantErr: "precision 39",
		},
		{
			name:    "scale above precision",
			schema:  Schema{Category: "c", Columns: []Column{{Name: "A", Type: Decimal(4, 5)}}},
			wantErr: "scale 5",
		},
		{
			name:    "unknown kind",
			schema:  Schema{Category: "c", Columns: []Column{{Name: "A", Type: ColumnType{Kind: "float"}}}},
			wantErr: "unsupported column kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunReport_Err(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Outcomes: []JobOutcome{
			{State: JobDone},
			{State: JobFailed, Err: errors.New("boom")},
			{State: JobSkipped},
		},
	}

	assert.Equal(t, 1, report.Count(JobDone))
	assert.Equal(t, 1, report.Count(JobFailed))
	assert.Equal(t, "boom", report.Outcomes[1].ErrorMessage())
	assert.Empty(t, report.Outcomes[0].ErrorMessage())

	var runErr *RunError
	require.ErrorAs(t, report.Err(), &runErr)
	assert.Equal(t, 1, runErr.Failed)
	assert.Equal(t, 3, runErr.Total)
	assert.Equal(t, time.Minute, runErr.Took)
	assert.Equal(t, "run run-1: 1 of 3 jobs failed", runErr.Error())

	report.Outcomes[1].State = JobDone
	assert.NoError(t, report.Err())
}

func TestJobError_Unwrap(t *testing.T) {
	cause := &NoTableFoundError{Dir: "/tmp/x"}
	err := error(&JobError{
		Job:   Job{Category: "committee_master", Year: 2024, RemoteKey: "bulk-downloads/2024/cm24.zip"},
		State: JobExtracted,
		Err:   cause,
	})

	var noTable *NoTableFoundError
	require.ErrorAs(t, err, &noTable)
	assert.Equal(t, "/tmp/x", noTable.Dir)
	assert.Contains(t, err.Error(), "committee_master_2024")
	assert.Contains(t, err.Error(), "bulk-downloads/2024/cm24.zip")
}
