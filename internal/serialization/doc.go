// Package serialization stores layer parameters in the .born container format.
//
// A .born file holds named, typed tensors plus a JSON header:
//
//	[64 bytes: fixed header]
//	  0x00 magic "BORN"
//	  0x04 format version (uint32 LE)
//	  0x08 flags (uint32 LE)
//	  0x10 header size (uint64 LE)
//	  0x18 data size (uint64 LE)
//	  0x20 SHA-256 of the data section (32 bytes)
//	[header: JSON]
//	[padding to a 64-byte boundary]
//	[tensor data: raw little-endian bytes, in header order]
//
// Tensors are written in name order so that identical state dictionaries
// produce identical files (apart from the creation time).
//
// Example usage:
//
//	stateDict, _ := data.StateDict()
//	err := serialization.WriteFile("conv1.born", stateDict, layer.TypeName(),
//	    map[string]string{serialization.MetadataLayerRecord: string(recordJSON)})
//
//	reader, err := serialization.NewBornReader("conv1.born")
//	defer reader.Close()
//	stateDict, err := reader.ReadStateDict()
package serialization
