package registry

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activity(id, category string) Activity {
	return Activity{
		ID:          id,
		DisplayName: id,
		Category:    category,
		TaskType:    id,
		Timeout:     "30s",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		reg     ActivityRegistry
		wantErr string
	}{
		{
			name: "valid",
			reg:  ActivityRegistry{Activities: []Activity{activity("create-intent", "intent"), activity("sign-nda", "dealroom")}},
		},
		{
			name:    "empty",
			reg:     ActivityRegistry{},
			wantErr: "no activities",
		},
		{
			name:    "duplicate id",
			reg:     ActivityRegistry{Activities: []Activity{activity("find-matches", "matching"), activity("find-matches", "matching")}},
			wantErr: "duplicate activity ID",
		},
		{
			name:    "unknown category",
			reg:     ActivityRegistry{Activities: []Activity{activity("create-intent", "crm")}},
			wantErr: "unknown category",
		},
		{
			name: "bad timeout",
			reg: ActivityRegistry{Activities: []Activity{func() Activity {
				a := activity("decline-match", "consent")
				a.Timeout = "thirty"
				return a
			}()}},
			wantErr: "invalid timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddRejectsDuplicateTaskType(t *testing.T) {
	reg := &ActivityRegistry{}
	require.NoError(t, reg.Add(activity("express-interest", "consent")))

	dup := activity("express-interest-v2", "consent")
	dup.TaskType = "express-interest"
	assert.Error(t, reg.Add(dup))
	assert.Len(t, reg.Activities, 1)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity-registry.json")
	reg := &ActivityRegistry{Version: "1.0.0", Activities: []Activity{activity("list-my-matches", "matching")}}
	require.NoError(t, Save(reg, path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.NotEmpty(t, loaded.LastUpdated)

	a, ok := loaded.Find("list-my-matches")
	require.True(t, ok)
	assert.Equal(t, "matching", a.Category)
}

func TestUndocumented(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{activity("create-deal-room", "dealroom")}}
	assert.Equal(t, []string{"list-deal-room-documents", "sign-nda"},
		reg.Undocumented([]string{"sign-nda", "create-deal-room", "list-deal-room-documents"}))
}

// The checked-in catalogue must stay loadable and cover every worker.
func TestShippedRegistry(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "configs", "activity-registry.json")

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	assert.Empty(t, reg.Undocumented([]string{
		"create-intent", "update-intent", "list-my-intents",
		"find-matches", "list-my-matches",
		"express-interest", "decline-match",
		"create-deal-room", "sign-nda", "list-deal-room-documents",
		"list-my-deal-rooms", "get-deal-room",
	}))
}
