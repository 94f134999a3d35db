package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPath(t *testing.T) {
	cfg := Defaults()
	cfg.Service.Name = "test-vgpu"
	cfg.Watchdog.Threshold = 4

	tests := []struct {
		name    string
		path    string
		want    any
		wantErr bool
	}{
		{
			name: "root service field",
			path: "service.name",
			want: "test-vgpu",
		},
		{
			name: "nested int field",
			path: "watchdog.threshold",
			want: 4,
		},
		{
			name: "bool field",
			path: "watchdog.enabled",
			want: true,
		},
		{
			name:    "invalid path",
			path:    "service.missing",
			wantErr: true,
		},
		{
			name:    "path through scalar",
			path:    "service.name.first",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.GetPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGetPathSection(t *testing.T) {
	cfg := Defaults()

	got, err := cfg.GetPath("thermal")
	assert.NoError(t, err)

	section, ok := got.(map[string]any)
	if assert.True(t, ok, "expected a map, got %T", got) {
		assert.Contains(t, section, "limit")
		assert.Contains(t, section, "ambient")
		assert.Contains(t, section, "cooling_factor")
	}
}
