// Package repositories implements SQLite persistence for discx records.
//
// Key Implementations:
//   - [JobRepository] : capture jobs, listed most recent first
//   - [DedupeRepository] : (playlist, track) pairs already written
//   - [FingerprintRepository] : visual fingerprints of confirmed releases
//   - [SettingsRepository] : user settings as a single JSON record
//   - [SecretRepository] : AES-GCM encrypted credential store
//
// List-shaped columns are stored as JSON text so a job round-trips in a single row.
package repositories
