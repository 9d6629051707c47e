package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reisewerk/migrate/internal/config"
)

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "password is redacted",
			in:   "postgres://app:secret@db:5432/hr?sslmode=disable",
			want: "postgres://app:***@db:5432/hr?sslmode=disable",
		},
		{
			name: "no password is unchanged",
			in:   "postgres://app@db:5432/hr",
			want: "postgres://app@db:5432/hr",
		},
		{
			name: "no userinfo is unchanged",
			in:   "postgres://db:5432/hr",
			want: "postgres://db:5432/hr",
		},
		{
			name: "empty string",
			in:   "",
			want: "",
		},
		{
			name: "unparseable input is unchanged",
			in:   "not a url at all",
			want: "not a url at all",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, config.RedactURL(tt.in))
		})
	}
}
