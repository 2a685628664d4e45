package infra

import "testing"

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/wallet?sslmode=disable": "pgx5://u:p@db:5432/wallet?sslmode=disable",
		"postgresql://db/wallet":                        "pgx5://db/wallet",
		"pgx5://db/wallet":                              "pgx5://db/wallet",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Fatalf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}
