// Package model defines the persistent entities and enums shared by the
// verification pipeline: companies, transcripts, financial periods, claims,
// verifications, and cross-quarter patterns.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Company is a public company identified by its upper-case ticker.
// Created during ingest and never mutated afterwards.
type Company struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector"`
	CreatedAt time.Time `json:"created_at"`
}

// CanonicalTicker upper-cases and trims a ticker so every reference to a
// company uses the same key.
func CanonicalTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Transcript is one earnings call, unique per (company, year, quarter).
type Transcript struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Year      int       `json:"year"`
	Quarter   int       `json:"quarter"`
	CallDate  time.Time `json:"call_date"`
	FullText  string    `json:"full_text"`
	CreatedAt time.Time `json:"created_at"`
}

// QuarterLabel formats a (quarter, year) pair the way reports and the
// discrepancy analyzer key their quarter maps, e.g. "Q3 2025".
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("Q%d %d", quarter, year)
}
