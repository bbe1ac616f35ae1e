// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package models

import (
	"time"

	"github.com/tomtom215/tideline/internal/docstore"
)

// Presence document field names.
const (
	FieldIdentityID    = "identityId"
	FieldLastHeartbeat = "lastHeartbeat"
	FieldOnline        = "online"
	FieldMetadata      = "metadata"
	FieldInstance      = "instance"
)

// DeviceMetadata is optional device/network context sent with a heartbeat.
type DeviceMetadata struct {
	Device    string `json:"device,omitempty"`
	Platform  string `json:"platform,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Network   string `json:"network,omitempty"`
}

// IsZero reports whether no metadata was supplied.
func (m DeviceMetadata) IsZero() bool {
	return m == DeviceMetadata{}
}

// Fields converts the metadata for storage.
func (m DeviceMetadata) Fields() docstore.Fields {
	return docstore.Fields{
		"device":    m.Device,
		"platform":  m.Platform,
		"userAgent": m.UserAgent,
		"ipAddress": m.IPAddress,
		"network":   m.Network,
	}
}

func metadataFromFields(f docstore.Fields) DeviceMetadata {
	if f == nil {
		return DeviceMetadata{}
	}
	return DeviceMetadata{
		Device:    f.String("device"),
		Platform:  f.String("platform"),
		UserAgent: f.String("userAgent"),
		IPAddress: f.String("ipAddress"),
		Network:   f.String("network"),
	}
}

// PresenceRecord is the liveness state of one administrative identity.
// Online is a projection of LastHeartbeat and the threshold in force when the
// record was read; it is recomputed on every read path.
type PresenceRecord struct {
	IdentityID    string         `json:"identityId"`
	LastHeartbeat time.Time      `json:"lastHeartbeat"`
	Online        bool           `json:"online"`
	Metadata      DeviceMetadata `json:"metadata"`
	Instance      string         `json:"instance,omitempty"`
}

// OnlineAt computes the online state at now for the given freshness threshold.
// The boundary is inclusive: a heartbeat exactly threshold old is online.
func (p PresenceRecord) OnlineAt(now time.Time, threshold time.Duration) bool {
	if p.LastHeartbeat.IsZero() {
		return false
	}
	return now.Sub(p.LastHeartbeat) <= threshold
}

// PresenceFromDocument converts a mirrored presence document.
func PresenceFromDocument(doc docstore.Document) PresenceRecord {
	f := doc.Fields
	id := f.String(FieldIdentityID)
	if id == "" {
		id = doc.ID
	}
	return PresenceRecord{
		IdentityID:    id,
		LastHeartbeat: f.Time(FieldLastHeartbeat),
		Online:        f.Bool(FieldOnline),
		Metadata:      metadataFromFields(f.Map(FieldMetadata)),
		Instance:      f.String(FieldInstance),
	}
}

// PresenceEvent is delivered to presence subscribers.
type PresenceEvent struct {
	Record PresenceRecord `json:"record"`
	// Source is "local" for heartbeats in this process and "remote" for
	// records merged from the mirrored collection.
	Source string `json:"source"`
	// Evicted is set when the sweep removed the record.
	Evicted bool `json:"evicted,omitempty"`
}

// Presence event sources.
const (
	PresenceSourceLocal  = "local"
	PresenceSourceRemote = "remote"
)
