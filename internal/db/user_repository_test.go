package db

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"voicedesk-backend-go/internal/models"
)

func TestNotificationsSetOnlyTouchesProvidedFlags(t *testing.T) {
	off := false
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	set := notificationsSet(models.UpdateNotificationsRequest{EmailNotifications: &off}, now)

	if len(set) != 2 {
		t.Fatalf("expected updatedAt and one flag, got %v", set)
	}
	if v, ok := set["notifications.emailNotifications"]; !ok || v != false {
		t.Errorf("emailNotifications = %v, %v; want false", v, ok)
	}
	for _, path := range []string{
		"notifications.callSummaries",
		"notifications.billingAlerts",
		"notifications.productUpdates",
		"notifications.weeklyReports",
		"notifications",
	} {
		if _, ok := set[path]; ok {
			t.Errorf("%s should not be written", path)
		}
	}
}

func TestNotificationsSetAllFlags(t *testing.T) {
	on, off := true, false
	set := notificationsSet(models.UpdateNotificationsRequest{
		EmailNotifications: &on,
		CallSummaries:      &off,
		BillingAlerts:      &on,
		ProductUpdates:     &off,
		WeeklyReports:      &on,
	}, time.Now())
	if len(set) != 6 {
		t.Errorf("expected 6 fields, got %d: %v", len(set), set)
	}
}

func TestUserIndexesKeepAuthSubjectUnique(t *testing.T) {
	for _, idx := range migrationIndexes()[usersCollection] {
		keys, ok := idx.Keys.(bson.D)
		if !ok || len(keys) != 1 || keys[0].Key != "authSubject" {
			continue
		}
		opts := &options.IndexOptions{}
		for _, apply := range idx.Options.List() {
			if err := apply(opts); err != nil {
				t.Fatal(err)
			}
		}
		if opts.Unique == nil || !*opts.Unique {
			t.Error("authSubject index must be unique")
		}
		if opts.PartialFilterExpression == nil {
			t.Error("authSubject index must skip users without a subject")
		}
		return
	}
	t.Fatal("no authSubject index on users")
}
