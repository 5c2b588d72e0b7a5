// Package audio plays the ambient track of the contact section.
// It uses the beep library to loop a WAV, OGG or MP3 file and applies
// the volume and playing state computed by the fade controller.
package audio
