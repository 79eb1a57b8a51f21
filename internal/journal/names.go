package journal

// Element names used by HotSpot LogCompilation output.
const (
	TagTask                = "task"
	TagTaskQueued          = "task_queued"
	TagTaskDone            = "task_done"
	TagNMethod             = "nmethod"
	TagPrintNMethod        = "print_nmethod"
	TagCompilationLog      = "compilation_log"
	TagSweeper             = "sweeper"
	TagCodeCacheFull       = "code_cache_full"
	TagPhase               = "phase"
	TagPhaseDone           = "phase_done"
	TagParse               = "parse"
	TagParseDone           = "parse_done"
	TagBC                  = "bc"
	TagMethod              = "method"
	TagKlass               = "klass"
	TagType                = "type"
	TagCall                = "call"
	TagDirectCall          = "direct_call"
	TagVirtualCall         = "virtual_call"
	TagPredictedCall       = "predicted_call"
	TagInlineFail          = "inline_fail"
	TagInlineSuccess       = "inline_success"
	TagInlineLevelDiscount = "inline_level_discount"
	TagLateInline          = "late_inline"
	TagDependency          = "dependency"
	TagBranch              = "branch"
	TagUncommonTrap        = "uncommon_trap"
	TagIntrinsic           = "intrinsic"
	TagObserve             = "observe"
	TagCastUp              = "cast_up"
	TagHotThrow            = "hot_throw"
	TagFailure             = "failure"
	TagEliminateAlloc      = "eliminate_allocation"
	TagEliminateLock       = "eliminate_lock"
	TagEliminateBoxing     = "eliminate_boxing"
	TagJVMS                = "jvms"
	TagAssertNull          = "assert_null"
	TagReplaceStringConcat = "replace_string_concat"
)

// Attribute names.
const (
	AttrID           = "id"
	AttrName         = "name"
	AttrHolder       = "holder"
	AttrReturn       = "return"
	AttrArguments    = "arguments"
	AttrMethod       = "method"
	AttrCompileID    = "compile_id"
	AttrCompiler     = "compiler"
	AttrCompileKind  = "compile_kind"
	AttrLevel        = "level"
	AttrBytes        = "bytes"
	AttrStamp        = "stamp"
	AttrAddress      = "address"
	AttrEntry        = "entry"
	AttrSize         = "size"
	AttrInstsOffset  = "insts_offset"
	AttrBCI          = "bci"
	AttrReason       = "reason"
	AttrCount        = "count"
	AttrIICount      = "iicount"
	AttrProfFactor   = "prof_factor"
	AttrInline       = "inline"
	AttrVirtual      = "virtual"
	AttrReceiver     = "receiver"
	AttrReceiverCnt  = "receiver_count"
	AttrSuccess      = "success"
	AttrNMSize       = "nmsize"
	AttrPreallocated = "preallocated"
	AttrFlags        = "flags"
	AttrOSRBCI       = "osr_bci"
	AttrDecompiles   = "decompiles"
)

// Phase names recognised in task bodies.
const (
	PhaseBuildIR   = "buildIR"
	PhaseParse     = "parse"
	PhaseOptimizer = "optimizer"
)

// Method name sentinels used by the JVM.
const (
	ConstructorName       = "<init>"
	StaticInitializerName = "<clinit>"
)

// StaleTaskReasons are failure reasons marking a task that was superseded
// before it was compiled.
var StaleTaskReasons = []string{"stale_task", "stale task"}
