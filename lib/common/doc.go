// Package common holds the pieces shared by the tkv command and the libraries:
// the logger factory that plugs into dragonboats logger package and the CLI
// configuration.
//
// Logging:
//
//	Every package declares its logger once:
//
//	  var Logger = logger.GetLogger("store")
//
//	InitLoggers installs the factory and sets the level of the db, store,
//	library and cli loggers. Lines are formatted as "LEVEL | pkg | message".
package common
