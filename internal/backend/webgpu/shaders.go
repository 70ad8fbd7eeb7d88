//go:build windows

package webgpu

// WGSL compute shaders for the element-wise tensor operations.
// Every shader runs with workgroup_size(256) on a 2D grid of workgroups
// (see workgroupGrid) and recovers the flat element index from it.

const elementParamsWGSL = `
struct Params {
    size: u32,
    scalar: f32,
}
`

const flatIndexWGSL = `
fn flat_index(gid: vec3<u32>, nwg: vec3<u32>) -> u32 {
    return gid.x + gid.y * nwg.x * 256u;
}
`

func binaryShader(expr string) string {
	return `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;
` + elementParamsWGSL + `
@group(0) @binding(3) var<uniform> params: Params;
` + flatIndexWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        result[idx] = ` + expr + `;
    }
}
`
}

// addShader performs element-wise addition: result = a + b.
var addShader = binaryShader("a[idx] + b[idx]")

// subShader performs element-wise subtraction: result = a - b.
var subShader = binaryShader("a[idx] - b[idx]")

// mulShader performs element-wise multiplication: result = a * b.
var mulShader = binaryShader("a[idx] * b[idx]")

// scalarMulShader performs scalar multiplication: result = x * scalar.
const scalarMulShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
` + elementParamsWGSL + `
@group(0) @binding(2) var<uniform> params: Params;
` + flatIndexWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        result[idx] = input[idx] * params.scalar;
    }
}
`

// globalSumShader reduces each workgroup into one partial sum using
// workgroup shared memory.
const globalSumShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
` + elementParamsWGSL + `
@group(0) @binding(2) var<uniform> params: Params;
` + flatIndexWGSL + `
var<workgroup> shared_data: array<f32, 256>;

@compute @workgroup_size(256)
fn main(
    @builtin(global_invocation_id) gid: vec3<u32>,
    @builtin(local_invocation_id) local_id: vec3<u32>,
    @builtin(workgroup_id) workgroup_id: vec3<u32>,
    @builtin(num_workgroups) nwg: vec3<u32>
) {
    let tid = local_id.x;
    let idx = flat_index(gid, nwg);

    if (idx < params.size) {
        shared_data[tid] = input[idx];
    } else {
        shared_data[tid] = 0.0;
    }
    workgroupBarrier();

    for (var s: u32 = 128u; s > 0u; s = s >> 1u) {
        if (tid < s) {
            shared_data[tid] = shared_data[tid] + shared_data[tid + s];
        }
        workgroupBarrier();
    }

    if (tid == 0u) {
        result[workgroup_id.x + workgroup_id.y * nwg.x] = shared_data[0];
    }
}
`
