// Package wizard provides the interactive scenario wizard behind
// "nodechaos init".
//
// RunWizard asks a short series of charmbracelet/huh form groups and
// returns a Result. BuildFile turns a Result into a validated
// config.File, and WriteFile writes it as YAML with a descriptive header.
package wizard
