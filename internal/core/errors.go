package core

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidInput is returned when a request passes binding but is semantically invalid.
var ErrInvalidInput = errors.New("invalid input")

// parseID converts a path id to an ObjectID. Malformed ids cannot exist, so they
// are reported as notFound.
func parseID(id string, notFound error) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: id '%s'", notFound, id)
	}
	return oid, nil
}
