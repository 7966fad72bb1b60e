// Package biz 提供 Agent 问答服务的业务逻辑层。
//
// 问答由一个有界的状态机驱动：
//   - AWAIT_DECISION: 调用生成服务，决定直接回答或调用检索工具
//   - RETRIEVING: 检索相关片段，结果写入会话历史
//   - GRADING: 判断检索内容与问题是否相关
//   - REWRITING: 基于原始问题改写查询
//   - ANSWERING: 根据最近一次检索结果生成答案
//   - DONE / FAILED: 终止状态
//
// 每次进入 AWAIT_DECISION 或 RETRIEVING 消耗一步。步数耗尽时强制回答一次，
// 仍无法得到答案则返回 FallbackAnswer。
package biz
