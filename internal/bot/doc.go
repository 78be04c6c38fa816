// Package bot handles interactive chat traffic: /start, region pickers,
// manual status checks and the settings panel.
package bot
