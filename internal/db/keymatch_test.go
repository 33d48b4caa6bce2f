package db

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMatchUserKey(t *testing.T) {
	oid := bson.NewObjectID()
	other := bson.NewObjectID()

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"object id", oid, true},
		{"object id pointer", &oid, true},
		{"hex string", oid.Hex(), true},
		{"upper-case hex string", "  " + strings.ToUpper(oid.Hex()) + " ", true},
		{"nested oid as bson.D", bson.D{{Key: "$oid", Value: oid.Hex()}}, true},
		{"nested oid as bson.M", bson.M{"$oid": oid.Hex()}, true},
		{"nested oid as map", map[string]any{"$oid": oid.Hex()}, true},
		{"other object id", other, false},
		{"other hex string", other.Hex(), false},
		{"nested other oid", bson.D{{Key: "$oid", Value: other.Hex()}}, false},
		{"not hex", "not-an-id", false},
		{"nil", nil, false},
		{"number", 42, false},
		{"document without oid", bson.D{{Key: "id", Value: oid.Hex()}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchUserKey(tt.value, oid); got != tt.want {
				t.Errorf("MatchUserKey(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestNormalizeUserKey(t *testing.T) {
	oid := bson.NewObjectID()

	got, ok := NormalizeUserKey(bson.D{{Key: "$oid", Value: oid.Hex()}})
	if !ok || got != oid {
		t.Fatalf("NormalizeUserKey(nested) = %v, %v; want %v, true", got, ok, oid)
	}

	if _, ok := NormalizeUserKey(bson.NilObjectID); ok {
		t.Error("NormalizeUserKey(NilObjectID) should not succeed")
	}
	if _, ok := NormalizeUserKey(""); ok {
		t.Error("NormalizeUserKey(\"\") should not succeed")
	}
}

func TestUserKeyFilter(t *testing.T) {
	oid := bson.NewObjectID()

	t.Run("without email", func(t *testing.T) {
		f := UserKeyFilter(oid, "")
		or, ok := f["$or"].(bson.A)
		if !ok {
			t.Fatalf("expected $or array, got %T", f["$or"])
		}
		if len(or) != 3 {
			t.Fatalf("expected 3 alternatives, got %d", len(or))
		}
		if or[0].(bson.M)["userId"] != oid {
			t.Errorf("first alternative should match the ObjectId")
		}
		if or[1].(bson.M)["userId"] != oid.Hex() {
			t.Errorf("second alternative should match the hex string")
		}
		if _, ok := or[2].(bson.M)["$expr"]; !ok {
			t.Errorf("third alternative should be an $expr on the nested $oid")
		}
	})

	t.Run("with email", func(t *testing.T) {
		f := UserKeyFilter(oid, " Jane@Example.com ")
		or := f["$or"].(bson.A)
		if len(or) != 4 {
			t.Fatalf("expected 4 alternatives, got %d", len(or))
		}
		if got := or[3].(bson.M)["email"]; got != "jane@example.com" {
			t.Errorf("email alternative = %v, want normalized email", got)
		}
	})
}

func TestEmailDomain(t *testing.T) {
	tests := map[string]string{
		"jane@Example.com": "example.com",
		"no-at-sign":       "",
		"trailing@":        "",
		"a@b@c.io":         "c.io",
	}
	for in, want := range tests {
		if got := EmailDomain(in); got != want {
			t.Errorf("EmailDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmailDomainFilterEscapes(t *testing.T) {
	f := EmailDomainFilter("@Acme.io")
	cond := f["email"].(bson.M)
	if cond["$regex"] != `@acme\.io$` {
		t.Errorf("regex = %v", cond["$regex"])
	}
}
