// Package main provides the entry point for the sitewalk CLI.
//
// sitewalk walks a website from a seed URL in a real browser, screenshots
// every page it reaches, pokes at forms and buttons, and writes a report of
// what it found. It can log in first and keeps a history of past runs.
//
// Usage:
//
//	sitewalk crawl <seed-url>
//	sitewalk crawl --login-url https://shop.example/login https://shop.example
//	sitewalk history --compare <seed-url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
