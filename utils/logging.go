package utils

import "log"

func LogInfo(msg string, args ...interface{}) {
	log.Printf("[INFO] "+msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	log.Printf("[WARN] "+msg, args...)
}

func LogError(msg string, args ...interface{}) {
	log.Printf("[ERROR] "+msg, args...)
}

func LogDebug(msg string, args ...interface{}) {
	log.Printf("[DEBUG] "+msg, args...)
}

func LogDB(msg string, args ...interface{}) {
	log.Printf("[DB] "+msg, args...)
}

func LogEngine(msg string, args ...interface{}) {
	log.Printf("[ENGINE] "+msg, args...)
}

func LogValidate(msg string, args ...interface{}) {
	log.Printf("[VALIDATE] "+msg, args...)
}

func LogCatalog(msg string, args ...interface{}) {
	log.Printf("[CATALOG] "+msg, args...)
}

func LogStartup(msg string, args ...interface{}) {
	log.Printf("[STARTUP] "+msg, args...)
}

func LogShutdown(msg string, args ...interface{}) {
	log.Printf("[SHUTDOWN] "+msg, args...)
}
