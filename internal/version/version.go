package version

// Version is the build version, overridden at link time with
// -ldflags "-X EnigmaNetz/Enigma-Netsh-Capture/internal/version.Version=<v>"
var Version = "dev"
