package db

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Legacy client documents store userId in one of three shapes:
//
//	ObjectId("64f0...")
//	"64f0..."
//	{ "$oid": "64f0..." }
//
// The helpers below match all three, on the server side through UserKeyFilter
// and on decoded values through MatchUserKey.

// UserKeyFilter returns a filter matching documents owned by oid in any of the
// three representations, or whose email equals email when it is not empty.
func UserKeyFilter(oid bson.ObjectID, email string) bson.M {
	hex := oid.Hex()
	or := bson.A{
		bson.M{"userId": oid},
		bson.M{"userId": hex},
		// "$oid" cannot be addressed with dot notation; $getField only accepts
		// documents, hence the $type guard.
		bson.M{"$expr": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$type": "$userId"}, "object"}},
			bson.M{"$eq": bson.A{
				bson.M{"$getField": bson.M{"field": bson.M{"$literal": "$oid"}, "input": "$userId"}},
				hex,
			}},
			false,
		}}},
	}
	if email = normalizeEmail(email); email != "" {
		or = append(or, bson.M{"email": email})
	}
	return bson.M{"$or": or}
}

// EmailDomainFilter matches documents whose email belongs to domain.
func EmailDomainFilter(domain string) bson.M {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
	return bson.M{"email": bson.M{
		"$regex":   "@" + regexp.QuoteMeta(domain) + "$",
		"$options": "i",
	}}
}

// MatchUserKey reports whether a decoded userId value refers to oid.
func MatchUserKey(value any, oid bson.ObjectID) bool {
	got, ok := NormalizeUserKey(value)
	return ok && got == oid
}

// NormalizeUserKey converts any of the accepted userId shapes into an ObjectID.
func NormalizeUserKey(value any) (bson.ObjectID, bool) {
	hex, ok := userKeyHex(value)
	if !ok {
		return bson.NilObjectID, false
	}
	oid, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID, false
	}
	return oid, true
}

func userKeyHex(value any) (string, bool) {
	switch v := value.(type) {
	case bson.ObjectID:
		return v.Hex(), !v.IsZero()
	case *bson.ObjectID:
		if v == nil || v.IsZero() {
			return "", false
		}
		return v.Hex(), true
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s, s != ""
	case bson.D:
		for _, e := range v {
			if e.Key == "$oid" {
				return userKeyHex(e.Value)
			}
		}
	case bson.M:
		if inner, ok := v["$oid"]; ok {
			return userKeyHex(inner)
		}
	case map[string]any:
		if inner, ok := v["$oid"]; ok {
			return userKeyHex(inner)
		}
	}
	return "", false
}

// EmailDomain returns the lower-cased domain part of email.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
