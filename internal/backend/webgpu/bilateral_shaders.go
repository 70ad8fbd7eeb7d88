//go:build windows

package webgpu

import (
	"strconv"
	"strings"
)

// Shared declarations of the bilateral shaders. Per-voxel channel arrays are
// sized by MAX_CHANNELS, which is why the GPU path has a channel limit.
const bilateralCommonWGSL = `
const MAX_CHANNELS: u32 = {{MAX_CHANNELS}}u;

struct Params {
    batch: u32,
    channels: u32,
    voxels: u32,
    _pad0: u32,
    size0: u32,
    size1: u32,
    size2: u32,
    _pad1: u32,
    radius0: u32,
    radius1: u32,
    radius2: u32,
    _pad2: u32,
    sigma_x: f32,
    sigma_y: f32,
    sigma_z: f32,
    sigma_r: f32,
}

fn flat_index(gid: vec3<u32>, nwg: vec3<u32>) -> u32 {
    return gid.x + gid.y * nwg.x * 256u;
}

fn clamp_coord(v: i32, size: u32) -> u32 {
    return u32(clamp(v, 0, i32(size) - 1));
}

fn gauss(o: i32, sigma: f32) -> f32 {
    let f = f32(o);
    return exp(-(f * f) / (2.0 * sigma * sigma));
}
`

// bilateralForwardShader writes seven tensors of n elements each into one
// buffer: output, weights, dO/dx, dO/dsigma_r, dO/dsigma_x, _y, _z.
var bilateralForwardShader = withMaxChannels(bilateralCommonWGSL + `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.batch * params.voxels) {
        return;
    }

    let channels = params.channels;
    let voxels = params.voxels;
    let home = idx % voxels;
    let base = (idx / voxels) * channels * voxels;
    let stride0 = params.size1 * params.size2;
    let h0 = i32(home / stride0);
    let h1 = i32((home / params.size2) % params.size1);
    let h2 = i32(home % params.size2);

    var diff: array<f32, MAX_CHANNELS>;
    var value: array<f32, MAX_CHANNELS>;
    var jx: array<f32, MAX_CHANNELS>;
    var j1: array<f32, MAX_CHANNELS>;
    var srx: array<f32, MAX_CHANNELS>;
    var s0x: array<f32, MAX_CHANNELS>;
    var s1x: array<f32, MAX_CHANNELS>;
    var s2x: array<f32, MAX_CHANNELS>;
    var weight = 0.0;
    var sr = 0.0;
    var s0 = 0.0;
    var s1 = 0.0;
    var s2 = 0.0;

    let inv_two_sr2 = 1.0 / (2.0 * params.sigma_r * params.sigma_r);
    let r0 = i32(params.radius0);
    let r1 = i32(params.radius1);
    let r2 = i32(params.radius2);

    for (var o0 = -r0; o0 <= r0; o0 = o0 + 1) {
        let n0 = clamp_coord(h0 + o0, params.size0) * stride0;
        let g0 = gauss(o0, params.sigma_x);
        for (var o1 = -r1; o1 <= r1; o1 = o1 + 1) {
            let n1 = clamp_coord(h1 + o1, params.size1) * params.size2;
            let g1 = gauss(o1, params.sigma_y);
            for (var o2 = -r2; o2 <= r2; o2 = o2 + 1) {
                let n = n0 + n1 + clamp_coord(h2 + o2, params.size2);

                var dist = 0.0;
                for (var c = 0u; c < channels; c = c + 1u) {
                    let d = input[base + c * voxels + n] - input[base + c * voxels + home];
                    diff[c] = d;
                    dist = dist + d * d;
                }
                let w = g0 * g1 * gauss(o2, params.sigma_z) * exp(-dist * inv_two_sr2);
                let w0 = w * f32(o0 * o0);
                let w1 = w * f32(o1 * o1);
                let w2 = w * f32(o2 * o2);

                weight = weight + w;
                sr = sr + w * dist;
                s0 = s0 + w0;
                s1 = s1 + w1;
                s2 = s2 + w2;
                for (var c = 0u; c < channels; c = c + 1u) {
                    let xn = input[base + c * voxels + n];
                    value[c] = value[c] + w * xn;
                    jx[c] = jx[c] + w * diff[c] * xn;
                    j1[c] = j1[c] + w * diff[c];
                    srx[c] = srx[c] + w * dist * xn;
                    s0x[c] = s0x[c] + w0 * xn;
                    s1x[c] = s1x[c] + w1 * xn;
                    s2x[c] = s2x[c] + w2 * xn;
                }
            }
        }
    }

    let total = params.batch * channels * voxels;
    let sr2 = params.sigma_r * params.sigma_r;
    let sr3 = sr2 * params.sigma_r;
    let sx3 = params.sigma_x * params.sigma_x * params.sigma_x;
    let sy3 = params.sigma_y * params.sigma_y * params.sigma_y;
    let sz3 = params.sigma_z * params.sigma_z * params.sigma_z;
    for (var c = 0u; c < channels; c = c + 1u) {
        let at = base + c * voxels + home;
        let o = value[c] / weight;
        result[at] = o;
        result[total + at] = weight;
        result[2u * total + at] = (jx[c] - o * j1[c]) / (sr2 * weight);
        result[3u * total + at] = (srx[c] - o * sr) / (sr3 * weight);
        result[4u * total + at] = (s0x[c] - o * s0) / (sx3 * weight);
        result[5u * total + at] = (s1x[c] - o * s1) / (sy3 * weight);
        result[6u * total + at] = (s2x[c] - o * s2) / (sz3 * weight);
    }
}
`)

// bilateralBackwardShader gathers the input gradient of every voxel from the
// homes whose window reaches it. One invocation per voxel, no atomics.
var bilateralBackwardShader = withMaxChannels(bilateralCommonWGSL + `
@group(0) @binding(0) var<storage, read> grad: array<f32>;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read> output: array<f32>;
@group(0) @binding(3) var<storage, read> weights: array<f32>;
@group(0) @binding(4) var<storage, read> dodx: array<f32>;
@group(0) @binding(5) var<storage, read_write> result: array<f32>;
@group(0) @binding(6) var<uniform> params: Params;

// Sum of spatial weights over the offsets o with clamp(h + o) == k on one axis.
fn reach_weight(radius: i32, size: i32, k: i32, h: i32, sigma: f32) -> f32 {
    var lo = -radius;
    var hi = radius;
    if (k > 0) {
        lo = max(lo, k - h);
    }
    if (k < size - 1) {
        hi = min(hi, k - h);
    }
    var sum = 0.0;
    for (var o = lo; o <= hi; o = o + 1) {
        sum = sum + gauss(o, sigma);
    }
    return sum;
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.batch * params.voxels) {
        return;
    }

    let channels = params.channels;
    let voxels = params.voxels;
    let kv = idx % voxels;
    let base = (idx / voxels) * channels * voxels;
    let stride0 = params.size1 * params.size2;
    let k0 = i32(kv / stride0);
    let k1 = i32((kv / params.size2) % params.size1);
    let k2 = i32(kv % params.size2);
    let r0 = i32(params.radius0);
    let r1 = i32(params.radius1);
    let r2 = i32(params.radius2);
    let inv_two_sr2 = 1.0 / (2.0 * params.sigma_r * params.sigma_r);
    let inv_sr2 = 1.0 / (params.sigma_r * params.sigma_r);

    var acc: array<f32, MAX_CHANNELS>;
    var diff: array<f32, MAX_CHANNELS>;
    for (var c = 0u; c < channels; c = c + 1u) {
        let at = base + c * voxels + kv;
        acc[c] = grad[at] * dodx[at];
    }

    // Cross-channel part of the home Jacobian.
    if (channels > 1u) {
        let wk = weights[base + kv];
        for (var o0 = -r0; o0 <= r0; o0 = o0 + 1) {
            let n0 = clamp_coord(k0 + o0, params.size0) * stride0;
            for (var o1 = -r1; o1 <= r1; o1 = o1 + 1) {
                let n1 = clamp_coord(k1 + o1, params.size1) * params.size2;
                for (var o2 = -r2; o2 <= r2; o2 = o2 + 1) {
                    let n = n0 + n1 + clamp_coord(k2 + o2, params.size2);
                    if (n == kv) {
                        continue;
                    }
                    var dist = 0.0;
                    var full = 0.0;
                    for (var c = 0u; c < channels; c = c + 1u) {
                        let d = input[base + c * voxels + n] - input[base + c * voxels + kv];
                        diff[c] = d;
                        dist = dist + d * d;
                        let at = base + c * voxels + kv;
                        full = full + grad[at] * (input[base + c * voxels + n] - output[at]) / wk;
                    }
                    let w = gauss(o0, params.sigma_x) * gauss(o1, params.sigma_y) * gauss(o2, params.sigma_z)
                        * exp(-dist * inv_two_sr2);
                    for (var c = 0u; c < channels; c = c + 1u) {
                        let at = base + c * voxels + kv;
                        let own = grad[at] * (input[base + c * voxels + n] - output[at]) / wk;
                        acc[c] = acc[c] + w * inv_sr2 * diff[c] * (full - own);
                    }
                }
            }
        }
    }

    // x[k] as the neighbour of home h.
    let size0 = i32(params.size0);
    let size1 = i32(params.size1);
    let size2 = i32(params.size2);
    for (var h0 = max(0, k0 - r0); h0 <= min(size0 - 1, k0 + r0); h0 = h0 + 1) {
        let w0 = reach_weight(r0, size0, k0, h0, params.sigma_x);
        if (w0 == 0.0) {
            continue;
        }
        for (var h1 = max(0, k1 - r1); h1 <= min(size1 - 1, k1 + r1); h1 = h1 + 1) {
            let w1 = reach_weight(r1, size1, k1, h1, params.sigma_y);
            if (w1 == 0.0) {
                continue;
            }
            for (var h2 = max(0, k2 - r2); h2 <= min(size2 - 1, k2 + r2); h2 = h2 + 1) {
                let w2 = reach_weight(r2, size2, k2, h2, params.sigma_z);
                if (w2 == 0.0) {
                    continue;
                }
                let h = u32(h0) * stride0 + u32(h1) * params.size2 + u32(h2);
                let wh = weights[base + h];

                var dist = 0.0;
                var a = 0.0;
                for (var c = 0u; c < channels; c = c + 1u) {
                    let xk = input[base + c * voxels + kv];
                    let d = xk - input[base + c * voxels + h];
                    diff[c] = d;
                    dist = dist + d * d;
                    let at = base + c * voxels + h;
                    a = a + grad[at] * (xk - output[at]) / wh;
                }
                let w = w0 * w1 * w2 * exp(-dist * inv_two_sr2);
                for (var c = 0u; c < channels; c = c + 1u) {
                    acc[c] = acc[c] + w * (grad[base + c * voxels + h] / wh - diff[c] * a * inv_sr2);
                }
            }
        }
    }

    for (var c = 0u; c < channels; c = c + 1u) {
        result[base + c * voxels + kv] = acc[c];
    }
}
`)

func withMaxChannels(code string) string {
	return strings.ReplaceAll(code, "{{MAX_CHANNELS}}", strconv.Itoa(MaxChannels))
}
