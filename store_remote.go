package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/TheRealTwizzy/snow_clicker/internal/supabase"
)

// RemoteStore keeps progress in the Supabase progress table, keyed by user id.
type RemoteStore struct {
	client *supabase.Client
	now    Clock
}

func NewRemoteStore(client *supabase.Client, now Clock) *RemoteStore {
	return &RemoteStore{client: client, now: now}
}

func (s *RemoteStore) Save(ctx context.Context, snap Snapshot) error {
	return s.client.UpsertProgress(ctx, snap.User.ID, snap.Progress, s.now())
}

func (s *RemoteStore) Load(ctx context.Context, userID string) (*Snapshot, error) {
	raw, err := s.client.FetchProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load remote progress: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var progress Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		log.Println("Remote store: ignoring malformed progress for", userID+":", err)
		return nil, nil
	}
	return &Snapshot{User: User{ID: userID}, Progress: progress}, nil
}

func (s *RemoteStore) FetchProfile(ctx context.Context, user User) (*Profile, error) {
	record, err := s.client.FetchUser(ctx, user.ID)
	if err != nil || record == nil {
		return nil, err
	}
	return &Profile{
		DisplayName:  record.DisplayName,
		Avatar:       record.Avatar,
		Season:       record.Season,
		Achievements: record.Achievements,
		Badges:       record.Badges,
	}, nil
}
