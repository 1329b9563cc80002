// Package pull moves data from a remote source into a local managed
// container.
//
// Two mutually exclusive modes exist. Replace mode overwrites an existing
// database behind a timestamped sibling backup; clone mode restores into a
// brand-new sibling database and never destroys anything. The ordering
// inside one pull is strict and never reordered: dump the source, back up
// the target, then restore. Credentials in the source URL are redacted
// before the URL appears in any result or log line.
package pull
