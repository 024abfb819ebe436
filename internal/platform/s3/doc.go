// Package s3 stores run reports in an S3-compatible bucket (AWS S3 or
// Hetzner Object Storage).
package s3
