package types

// FileOperation identifies the intercepted call that produced a file
// access report. The set is closed: the monitoring agent only ever emits
// names from this table, but newer agents may know operations this build
// does not, so lookup of an unrecognized name yields OpUnknown instead
// of an error.
type FileOperation uint8

const (
	OpUnknown FileOperation = iota
	OpCreateFile
	OpGetFileAttributes
	OpGetFileAttributesEx
	OpProcess
	OpProcessExit
	OpProcessRequiresCoEnabled
	OpFindFirstFileEx
	OpFindNextFile
	OpCreateDirectory
	OpDeleteFile
	OpMoveFileSource
	OpMoveFileDestination
	OpMoveFileWithProgressSource
	OpMoveFileWithProgressDest
	OpSetFileInformationByHandleSource
	OpSetFileInformationByHandleDest
	OpZwSetRenameInformationFileSource
	OpZwSetRenameInformationFileDest
	OpZwSetLinkInformationFile
	OpZwSetDispositionInformationFile
	OpZwSetModeInformationFile
	OpZwSetFileNameInformationFileSource
	OpZwSetFileNameInformationFileDest
	OpCopyFileSource
	OpCopyFileDestination
	OpCreateHardLinkSource
	OpCreateHardLinkDestination
	OpRemoveDirectory
	OpNtQueryDirectoryFile
	OpZwQueryDirectoryFile
	OpNtCreateFile
	OpZwCreateFile
	OpZwOpenFile
	OpChangedReadWriteToReadAccess
	OpFirstAllowWriteCheckInProcess
	OpReparsePointTarget
	OpCreateSymbolicLinkSource
	OpMultipleOperations
	OpMacLookup
	OpMacReadlink
	OpMacVNodeCreate
	OpKAuthMoveSource
	OpKAuthMoveDest
	OpKAuthCreateHardlinkSource
	OpKAuthCreateHardlinkDest
	OpKAuthCopySource
	OpKAuthCopyDest
	OpKAuthDeleteDir
	OpKAuthDeleteFile
	OpKAuthOpenDir
	OpKAuthReadFile
	OpKAuthCreateDir
	OpKAuthWriteFile
	OpKAuthClose
	OpKAuthCloseModified
	OpKAuthVNodeExecute
	OpKAuthVNodeWrite
	OpKAuthVNodeRead
	OpKAuthVNodeProbe
)

// operationNames maps wire names to operations. Built once at init,
// never mutated afterwards.
var operationNames = map[string]FileOperation{
	"CreateFile":                         OpCreateFile,
	"GetFileAttributes":                  OpGetFileAttributes,
	"GetFileAttributesEx":                OpGetFileAttributesEx,
	"Process":                            OpProcess,
	"ProcessExit":                        OpProcessExit,
	"ProcessRequiresCoEnabled":           OpProcessRequiresCoEnabled,
	"FindFirstFileEx":                    OpFindFirstFileEx,
	"FindNextFile":                       OpFindNextFile,
	"CreateDirectory":                    OpCreateDirectory,
	"DeleteFile":                         OpDeleteFile,
	"MoveFileSource":                     OpMoveFileSource,
	"MoveFileDestination":                OpMoveFileDestination,
	"MoveFileWithProgressSource":         OpMoveFileWithProgressSource,
	"MoveFileWithProgressDest":           OpMoveFileWithProgressDest,
	"SetFileInformationByHandleSource":   OpSetFileInformationByHandleSource,
	"SetFileInformationByHandleDest":     OpSetFileInformationByHandleDest,
	"ZwSetRenameInformationFileSource":   OpZwSetRenameInformationFileSource,
	"ZwSetRenameInformationFileDest":     OpZwSetRenameInformationFileDest,
	"ZwSetLinkInformationFile":           OpZwSetLinkInformationFile,
	"ZwSetDispositionInformationFile":    OpZwSetDispositionInformationFile,
	"ZwSetModeInformationFile":           OpZwSetModeInformationFile,
	"ZwSetFileNameInformationFileSource": OpZwSetFileNameInformationFileSource,
	"ZwSetFileNameInformationFileDest":   OpZwSetFileNameInformationFileDest,
	"CopyFileSource":                     OpCopyFileSource,
	"CopyFileDestination":                OpCopyFileDestination,
	"CreateHardLinkSource":               OpCreateHardLinkSource,
	"CreateHardLinkDestination":          OpCreateHardLinkDestination,
	"RemoveDirectory":                    OpRemoveDirectory,
	"NtQueryDirectoryFile":               OpNtQueryDirectoryFile,
	"ZwQueryDirectoryFile":               OpZwQueryDirectoryFile,
	"NtCreateFile":                       OpNtCreateFile,
	"ZwCreateFile":                       OpZwCreateFile,
	"ZwOpenFile":                         OpZwOpenFile,
	"ChangedReadWriteToReadAccess":       OpChangedReadWriteToReadAccess,
	"FirstAllowWriteCheckInProcess":      OpFirstAllowWriteCheckInProcess,
	"ReparsePointTarget":                 OpReparsePointTarget,
	"CreateSymbolicLinkSource":           OpCreateSymbolicLinkSource,
	"MultipleOperations":                 OpMultipleOperations,
	"MacLookup":                          OpMacLookup,
	"MacReadlink":                        OpMacReadlink,
	"MacVNodeCreate":                     OpMacVNodeCreate,
	"KAuthMoveSource":                    OpKAuthMoveSource,
	"KAuthMoveDest":                      OpKAuthMoveDest,
	"KAuthCreateHardlinkSource":          OpKAuthCreateHardlinkSource,
	"KAuthCreateHardlinkDest":            OpKAuthCreateHardlinkDest,
	"KAuthCopySource":                    OpKAuthCopySource,
	"KAuthCopyDest":                      OpKAuthCopyDest,
	"KAuthDeleteDir":                     OpKAuthDeleteDir,
	"KAuthDeleteFile":                    OpKAuthDeleteFile,
	"KAuthOpenDir":                       OpKAuthOpenDir,
	"KAuthReadFile":                      OpKAuthReadFile,
	"KAuthCreateDir":                     OpKAuthCreateDir,
	"KAuthWriteFile":                     OpKAuthWriteFile,
	"KAuthClose":                         OpKAuthClose,
	"KAuthCloseModified":                 OpKAuthCloseModified,
	"KAuthVNodeExecute":                  OpKAuthVNodeExecute,
	"KAuthVNodeWrite":                    OpKAuthVNodeWrite,
	"KAuthVNodeRead":                     OpKAuthVNodeRead,
	"KAuthVNodeProbe":                    OpKAuthVNodeProbe,
}

// operationStrings is the reverse of operationNames plus OpUnknown.
var operationStrings = func() map[FileOperation]string {
	m := make(map[FileOperation]string, len(operationNames)+1)
	m[OpUnknown] = "Unknown"
	for name, op := range operationNames {
		m[op] = name
	}
	return m
}()

// OperationByName resolves a wire operation name. Unrecognized names
// map to OpUnknown with ok=false; callers tolerate this (a newer agent
// may report operations this build has no name for).
func OperationByName(name string) (FileOperation, bool) {
	op, ok := operationNames[name]
	if !ok {
		return OpUnknown, false
	}
	return op, true
}

// String returns the wire name of the operation.
func (op FileOperation) String() string {
	if s, ok := operationStrings[op]; ok {
		return s
	}
	return "Unknown"
}
