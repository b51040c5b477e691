package db

import (
	"fmt"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil error", nil, "", false},
		{
			"postgres duplicate",
			fmt.Errorf(`ERROR: duplicate key value violates unique constraint "users_username_key"`),
			"",
			true,
		},
		{
			"sqlite duplicate",
			fmt.Errorf("UNIQUE constraint failed: users.username"),
			"",
			true,
		},
		{
			"named constraint match",
			fmt.Errorf(`duplicate key value violates unique constraint "uq_print_jobs_pending"`),
			"uq_print_jobs_pending",
			true,
		},
		{
			"named constraint mismatch",
			fmt.Errorf(`duplicate key value violates unique constraint "users_username_key"`),
			"uq_print_jobs_pending",
			false,
		},
		{"unrelated error", fmt.Errorf("connection refused"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
