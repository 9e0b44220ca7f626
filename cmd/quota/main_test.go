package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/condo-quotas/internal/common"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err      error
		name     string
		contains string
	}{
		{name: "user error", err: common.NewUserError("budget not found", nil), contains: "budget not found"},
		{name: "finalized", err: fmt.Errorf("budget 3: %w", common.ErrAlreadyFinalized), contains: "schedules clear"},
		{name: "lock timeout", err: fmt.Errorf("budget:3: %w", common.ErrLockTimeout), contains: "another finalization"},
		{name: "plain", err: errors.New("disk full"), contains: "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, userMessage(tt.err), tt.contains)
		})
	}
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		name, format, output, want string
		wantErr                    bool
	}{
		{name: "default csv", want: "csv"},
		{name: "inferred xlsx", output: "quotas.XLSX", want: "xlsx"},
		{name: "explicit csv to file", format: "csv", output: "q.xlsx", want: "csv"},
		{name: "xlsx to stdout", format: "xlsx", wantErr: true},
		{name: "unknown", format: "pdf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exportFormat(tt.format, tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"auth", "import", "schedule", "finalize", "standalone", "schedules", "publish", "migrate", "backup", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KiB", formatSize(1536))
	assert.Equal(t, "2.0 MiB", formatSize(2*1024*1024))
}
