package domain

// KeyPrefix namespaces every key realtorbot reads or writes in the key-value store.
const KeyPrefix = "realtorbot:"
