// Package domain contains the ClipBox entities shared by every store: primary
// tags, clips and albums, their reference-store mirrors, and the recipes the
// capture flow stages before migration.
package domain
