// Package sitemapgen crawls a single website origin breadth-first and
// produces sitemap XML documents describing the pages it found.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, etree/, sqlite/, redis/).
package sitemapgen
