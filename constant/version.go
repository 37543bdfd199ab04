package constant

// Version is overwritten at build time via -ldflags "-X".
var Version = "dev"
