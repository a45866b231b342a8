// Package portfolio defines the domain model shared by the portfolio service:
// projects, users, social links, the transient metadata and screenshot values
// produced during ingestion, and the small interfaces every backend implements.
package portfolio
