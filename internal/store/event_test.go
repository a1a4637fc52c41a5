package store

import (
	"testing"

	"github.com/evently/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWhere(t *testing.T) {
	seed := NewID()

	tests := []struct {
		name      string
		filter    types.EventFilter
		wantWhere string
		wantArgs  []any
		wantErr   error
	}{
		{
			name:      "no filter",
			filter:    types.EventFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "title and description",
			filter:    types.EventFilter{Title: "jazz", Description: "night"},
			wantWhere: `WHERE (title ILIKE $1 ESCAPE '\' OR description ILIKE $2 ESCAPE '\')`,
			wantArgs:  []any{"%jazz%", "%night%"},
		},
		{
			name:      "description with exclude",
			filter:    types.EventFilter{Description: "50%_off", ExcludeID: seed},
			wantWhere: `WHERE (description ILIKE $1 ESCAPE '\') AND id <> $2`,
			wantArgs:  []any{`%50\%\_off%`, seed},
		},
		{
			name:    "malformed exclude",
			filter:  types.EventFilter{ExcludeID: "bad"},
			wantErr: ErrInvalidID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, err := eventWhere(tt.filter)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestContainsPattern_EscapesBackslash(t *testing.T) {
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}
