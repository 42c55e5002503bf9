// Package scraper holds the job-record model shared by every stage of the
// teams-titles pipeline, the URL planner that turns user input into a
// worklist, and the driver that walks the worklist one page at a time.
package scraper
