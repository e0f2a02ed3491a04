// Command warden evaluates relationship-based authorization queries
// against a namespace schema and a Postgres-backed tuple store.
package main

func main() {
	Execute()
	ShowUpdateNoticeIfAvailable()
}
