// Package crawler enriches feed entries with metadata scraped from the pages
// they link to. It only runs for entries mirrored to event publishers.
package crawler
