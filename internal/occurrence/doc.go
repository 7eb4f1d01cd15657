// Package occurrence materializes instances of repeating task series.
// It reconciles a user's task set against the current date, creating the
// instances that are missing while never duplicating existing ones or
// resurrecting dates the owner explicitly removed.
package occurrence
