package cache

const keyPrefix = "screening:"

func CaptureKey(providerCallID string) string { return keyPrefix + "capture:" + providerCallID }

func AdmissionKey(applicationID string) string { return keyPrefix + "admission:" + applicationID }

func RetrievalKey(callID string) string { return keyPrefix + "retrieval:" + callID }
